package models

import "gorm.io/gorm"

const (
	RequestStatusActive              = "active"
	RequestStatusSelfCancelled       = "self_cancelled"
	RequestStatusCancelled           = "cancelled"
	RequestStatusOverlappedCancelled = "overlapped_cancelled"
)

// OpponentFindingRequest is one responder's request against a post.
// A request is the accepted one for its post when IsAccepted is true and
// Status is still "active"; a post has at most one such request at a time.
type OpponentFindingRequest struct {
	gorm.Model
	OpponentFindingID uint            `json:"opponentFindingID" gorm:"not null;index:idx_request_per_post,unique"`
	RequesterID       uint            `json:"requesterID" gorm:"not null;index:idx_request_per_post,unique"`
	Message           string          `json:"message" gorm:"size:500"`
	IsAccepted        bool            `json:"isAccepted" gorm:"default:false"`
	// active, self_cancelled, cancelled, overlapped_cancelled
	Status            string          `json:"status" gorm:"type:varchar(24);not null;index"`
	OpponentFinding   OpponentFinding `json:"opponentFinding" gorm:"foreignKey:OpponentFindingID"`
	Requester         User            `json:"requester" gorm:"foreignKey:RequesterID"`
}
