package api

type UpsertUserRequest struct {
	ImageURL string `json:"imageUrl,omitempty"`
}

type RegenerateAvatarRequest struct {
	ImageURL string `json:"imageUrl,omitempty"`
}

type ResolveDirectRequest struct {
	OtherUserID string `json:"otherUserId"`
}

type CreateGroupRequest struct {
	GroupName  string   `json:"groupName"`
	GroupImage string   `json:"groupImage,omitempty"`
	MemberIDs  []string `json:"memberIds"`
}

type AddMembersRequest struct {
	MemberIDs []string `json:"memberIds"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}
