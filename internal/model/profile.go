package model

type UserRole string

const (
	Learner UserRole = "learner"
	Admin   UserRole = "admin"
)

// Profile 用户展示资料，ID 由身份提供方下发
// Points 只在首次完成流程时 +10，由引擎原子递增
// swagger:model Profile
type Profile struct {
	UUIDBase
	Nickname  string   `gorm:"size:100;not null" json:"nickname"`
	AvatarURL string   `gorm:"size:255" json:"avatarUrl"`
	Role      UserRole `gorm:"type:enum('learner','admin');default:'learner'" json:"role"`
	Points    int      `gorm:"default:0" json:"points"`
}

func (Profile) TableName() string {
	return "profiles"
}
