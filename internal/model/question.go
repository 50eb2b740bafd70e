package model

// QuestionOption 选项标识，正确答案有且仅有一个
type QuestionOption string

const (
	OptionA QuestionOption = "A"
	OptionB QuestionOption = "B"
	OptionC QuestionOption = "C"
)

// Question 流程测验题目，三选一
// swagger:model Question
type Question struct {
	UUIDBase
	ProcessID     string         `gorm:"index;type:varchar(36);not null" json:"processId"`
	Text          string         `gorm:"type:text;not null" json:"text"`
	OptionA       string         `gorm:"size:255;not null" json:"optionA"`
	OptionB       string         `gorm:"size:255;not null" json:"optionB"`
	OptionC       string         `gorm:"size:255;not null" json:"optionC"`
	CorrectOption QuestionOption `gorm:"type:enum('A','B','C');not null" json:"-"`
}

func (Question) TableName() string {
	return "questions"
}
