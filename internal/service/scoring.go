package service

import (
	"levelup_backend/internal/model"
)

// AnswerSheet 题目ID到所选选项的映射，未作答的题目不出现
type AnswerSheet map[string]model.QuestionOption

// ExamScore 服务端判分结果
type ExamScore struct {
	Score   int  `json:"score"`
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
	Passed  bool `json:"passed"`
}

// EvaluateExam 对提交的答卷重新判分，客户端分数只当展示提示，永远不作为写台账的依据
// 纯函数：score = round(100 * correct / total)，四舍五入；空题集得 0 分
func EvaluateExam(questions []model.Question, answers AnswerSheet, passThreshold int) ExamScore {
	total := len(questions)
	if total == 0 {
		return ExamScore{}
	}

	correct := 0
	for _, q := range questions {
		if selected, ok := answers[q.ID]; ok && selected == q.CorrectOption {
			correct++
		}
	}

	score := roundPercent(correct, total)
	return ExamScore{
		Score:   score,
		Correct: correct,
		Total:   total,
		Passed:  score >= passThreshold,
	}
}

// roundPercent 整数百分比，round half up，分母为0时返回0
// floor(100p/w + 1/2) == floor((200p + w) / 2w)，全程整型避免浮点误差
func roundPercent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}
