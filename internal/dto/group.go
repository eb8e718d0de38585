package dto

type GroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
}

type AddMemberRequest struct {
	UserID string `json:"userId"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}
