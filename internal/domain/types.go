package domain

// UserID is the opaque identity issued by the external auth provider.
type UserID = string

type UserStatus string

const (
	StatusOffline UserStatus = "Offline"
	StatusOnline  UserStatus = "Online"
	StatusAway    UserStatus = "Away"
	StatusBusy    UserStatus = "Busy"
)

type FriendStatus string

const (
	FriendPending  FriendStatus = "Pending"
	FriendAccepted FriendStatus = "Accepted"
	FriendBlocked  FriendStatus = "Blocked"
	FriendDeclined FriendStatus = "Declined"
)

type GroupRole string

const (
	RoleMember GroupRole = "Member"
	RoleAdmin  GroupRole = "Admin"
	RoleOwner  GroupRole = "Owner"
)

func (r GroupRole) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// AtLeast reports whether r grants the privileges of min.
func (r GroupRole) AtLeast(min GroupRole) bool {
	return roleRank(r) >= roleRank(min)
}

func roleRank(r GroupRole) int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

type MessageType string

const (
	MessageText  MessageType = "Text"
	MessageImage MessageType = "Image"
	MessageFile  MessageType = "File"
	MessageVideo MessageType = "Video"
	MessageAudio MessageType = "Audio"
	MessageEmoji MessageType = "Emoji"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageVideo, MessageAudio, MessageEmoji:
		return true
	}
	return false
}

type NotificationType string

const (
	NotifyInfo          NotificationType = "Info"
	NotifyFriendRequest NotificationType = "FriendRequest"
	NotifyMessage       NotificationType = "Message"
	NotifyPostLike      NotificationType = "PostLike"
	NotifyPostComment   NotificationType = "PostComment"
	NotifyGroupInvite   NotificationType = "GroupInvite"
	NotifyGroupMessage  NotificationType = "GroupMessage"
	NotifySystem        NotificationType = "System"
)
