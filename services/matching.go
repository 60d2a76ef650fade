package services

import (
	"fmt"
	"time"

	"fieldbook-server/models"
	"fieldbook-server/utils"

	"gorm.io/gorm"
)

// OpponentService owns the opponent-finding post and request state machines
// and the cascading invalidation that keeps one person from holding two
// overlapping commitments. Acceptance, cancellation and restore all lock the
// affected person's user row, serializing their whole active post/request
// set for the duration of the transaction.
type OpponentService struct {
	Notifications *NotificationService
}

func NewOpponentService() *OpponentService {
	return &OpponentService{Notifications: NewNotificationService()}
}

type CreateFindingInput struct {
	HolderID     uint
	BookingID    *uint
	Date         time.Time
	StartSeconds int
	EndSeconds   int
	Message      string
}

// BlockingClaims is the set of accepted commitments that prevents a restore.
type BlockingClaims struct {
	FindingIDs []uint `json:"findingIDs"`
	RequestIDs []uint `json:"requestIDs"`
}

func (bc BlockingClaims) Empty() bool {
	return len(bc.FindingIDs) == 0 && len(bc.RequestIDs) == 0
}

// invalidationItem is one unit of cascade work: an interval that person now
// holds exclusively.
type invalidationItem struct {
	personID      uint
	date          time.Time
	startSeconds  int
	endSeconds    int
	skipFindingID uint
	skipRequestID uint
}

// CreateFinding opens a post, anchored to an accepted booking of the creator
// or to an explicit window.
func (svc *OpponentService) CreateFinding(db *gorm.DB, input CreateFindingInput) (*models.OpponentFinding, error) {
	now := time.Now()

	var finding models.OpponentFinding
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockUserRow(tx, input.HolderID); err != nil {
			return err
		}

		date := DateOnly(input.Date)
		start, end := input.StartSeconds, input.EndSeconds

		if input.BookingID != nil {
			var booking models.Booking
			if err := tx.First(&booking, *input.BookingID).Error; err != nil {
				return utils.NewValidation("booking_invalid", "anchor booking not found")
			}
			if booking.HolderID != input.HolderID || booking.Status != models.BookingStatusAccepted {
				return utils.NewValidation("booking_invalid", "anchor booking must be accepted and owned by the creator")
			}
			date = DateOnly(booking.Date)
			start, end = booking.StartSeconds, booking.EndSeconds
		} else if end <= start {
			return utils.NewValidation("invalid_interval", "end must be after start")
		}

		_, windowEnd := utils.DaySpan(date, start, end)
		if !windowEnd.After(now) {
			return utils.NewValidation("expired", "the window has already passed")
		}

		var dup int64
		if err := tx.Model(&models.OpponentFinding{}).
			Where("holder_id = ? AND date = ? AND start_seconds = ? AND end_seconds = ? AND status NOT IN ?",
				input.HolderID, date, start, end,
				[]string{models.FindingStatusCancelled, models.FindingStatusOverlappedCancelled, models.FindingStatusOpponentCancelled}).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return utils.NewConflict("already_exists", "an open post already exists for this window")
		}

		blocking, err := svc.blockingClaims(tx, input.HolderID, date, start, end, 0, 0)
		if err != nil {
			return err
		}
		if !blocking.Empty() {
			return utils.NewConflict("overlap", "an overlapping post or accepted request already exists").WithDetails(blocking)
		}

		finding = models.OpponentFinding{
			HolderID:     input.HolderID,
			BookingID:    input.BookingID,
			Date:         date,
			StartSeconds: start,
			EndSeconds:   end,
			Message:      input.Message,
			Status:       models.FindingStatusFinding,
		}
		return tx.Create(&finding).Error
	})
	if err != nil {
		return nil, err
	}
	return &finding, nil
}

// CreateRequest registers one responder against an open post.
func (svc *OpponentService) CreateRequest(db *gorm.DB, findingID, requesterID uint, message string) (*models.OpponentFindingRequest, error) {
	now := time.Now()

	var request models.OpponentFindingRequest
	var finding models.OpponentFinding
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockUserRow(tx, requesterID); err != nil {
			return err
		}
		if err := tx.First(&finding, findingID).Error; err != nil {
			return utils.NewNotFound("post_not_found", "opponent finding not found")
		}
		if finding.HolderID == requesterID {
			return utils.NewValidation("own_post", "cannot request your own post")
		}
		if finding.Status != models.FindingStatusFinding {
			return utils.NewConflict("already_decided", "the post is no longer open")
		}
		if finding.IsOverdue(now) {
			return utils.NewConflict("expired", "the post's window has already passed")
		}

		var dup int64
		if err := tx.Model(&models.OpponentFindingRequest{}).
			Where("opponent_finding_id = ? AND requester_id = ?", findingID, requesterID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return utils.NewConflict("already_requested", "you already requested this post")
		}

		// only accepted claims block a new request; the requester's own open
		// posts get overlap-cancelled later if this request is accepted
		blocking, err := svc.acceptedClaims(tx, requesterID, finding.Date, finding.StartSeconds, finding.EndSeconds)
		if err != nil {
			return err
		}
		if !blocking.Empty() {
			return utils.NewConflict("overlap", "you already hold an accepted commitment in this window").WithDetails(blocking)
		}

		request = models.OpponentFindingRequest{
			OpponentFindingID: findingID,
			RequesterID:       requesterID,
			Message:           message,
			Status:            models.RequestStatusActive,
		}
		return tx.Create(&request).Error
	})
	if err != nil {
		return nil, err
	}

	go svc.Notifications.Publish([]uint{finding.HolderID}, "opponent_request", "New Opponent Request",
		"Someone wants to play against you", "opponent_finding", finding.ID)

	return &request, nil
}

// AcceptRequest matches a post with one responder. The post closes, the
// request becomes the accepted one, and every other active post or request
// of the requester that overlaps the window is invalidated in the same
// transaction.
func (svc *OpponentService) AcceptRequest(db *gorm.DB, requestID, actorID uint) (*models.OpponentFindingRequest, error) {
	now := time.Now()

	var request models.OpponentFindingRequest
	var finding models.OpponentFinding
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, requestID).Error; err != nil {
			return utils.NewNotFound("not_found", "request not found")
		}
		if err := tx.First(&finding, request.OpponentFindingID).Error; err != nil {
			return utils.NewNotFound("post_not_found", "opponent finding not found")
		}
		if finding.HolderID != actorID {
			return utils.NewValidation("not_eligible", "only the post holder can accept a request")
		}
		if err := lockUserRow(tx, request.RequesterID); err != nil {
			return err
		}
		if request.Status != models.RequestStatusActive || request.IsAccepted {
			return utils.NewConflict("already_decided", "the request is no longer active")
		}
		if finding.Status != models.FindingStatusFinding {
			return utils.NewConflict("already_decided", "the post is no longer open")
		}
		if finding.IsOverdue(now) {
			return utils.NewConflict("expired", "the post's window has already passed")
		}

		if err := tx.Model(&finding).Update("status", models.FindingStatusAccepted).Error; err != nil {
			return err
		}
		finding.Status = models.FindingStatusAccepted
		if err := tx.Model(&request).Update("is_accepted", true).Error; err != nil {
			return err
		}
		request.IsAccepted = true

		seed := invalidationItem{
			personID:      request.RequesterID,
			date:          finding.Date,
			startSeconds:  finding.StartSeconds,
			endSeconds:    finding.EndSeconds,
			skipFindingID: finding.ID,
			skipRequestID: request.ID,
		}
		return svc.invalidateOverlapping(tx, actorID, finding.ID, seed)
	})
	if err != nil {
		return nil, err
	}

	go svc.Notifications.Publish([]uint{finding.HolderID, request.RequesterID}, "opponent_matched", "Opponent Matched",
		fmt.Sprintf("Match set for %s %s-%s", finding.Date.Format("Jan 2, 2006"),
			utils.FormatDaySeconds(finding.StartSeconds), utils.FormatDaySeconds(finding.EndSeconds)),
		"opponent_finding", finding.ID)

	return &request, nil
}

// invalidateOverlapping drains a worklist of newly exclusive intervals,
// marking every other active request and every other open or matched post of
// the affected person as overlapped_cancelled. A matched post takes its
// accepted request down with it. Marking never makes new intervals
// exclusive, so the queue drains in one pass per seed; it exists so the
// whole batch is explicit, ordered and auditable. Runs inside the caller's
// transaction; all or nothing.
func (svc *OpponentService) invalidateOverlapping(tx *gorm.DB, actorID, seedFindingID uint, seeds ...invalidationItem) error {
	queue := append([]invalidationItem(nil), seeds...)
	var cancelled []uint

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		var requests []models.OpponentFindingRequest
		if err := tx.Model(&models.OpponentFindingRequest{}).
			Joins("JOIN opponent_findings ON opponent_findings.id = opponent_finding_requests.opponent_finding_id").
			Where("opponent_finding_requests.requester_id = ? AND opponent_finding_requests.status = ? AND opponent_finding_requests.id <> ?",
				item.personID, models.RequestStatusActive, item.skipRequestID).
			Where("opponent_findings.date = ? AND opponent_findings.start_seconds < ? AND opponent_findings.end_seconds > ?",
				item.date, item.endSeconds, item.startSeconds).
			Order("opponent_finding_requests.id ASC").
			Find(&requests).Error; err != nil {
			return err
		}
		for i := range requests {
			if err := tx.Model(&requests[i]).Update("status", models.RequestStatusOverlappedCancelled).Error; err != nil {
				return err
			}
			cancelled = append(cancelled, requests[i].ID)
		}

		var findings []models.OpponentFinding
		if err := tx.Where("holder_id = ? AND status IN ? AND id <> ? AND date = ? AND start_seconds < ? AND end_seconds > ?",
			item.personID, []string{models.FindingStatusFinding, models.FindingStatusAccepted}, item.skipFindingID,
			item.date, item.endSeconds, item.startSeconds).
			Order("id ASC").Find(&findings).Error; err != nil {
			return err
		}
		for i := range findings {
			if findings[i].Status == models.FindingStatusAccepted {
				var accepted models.OpponentFindingRequest
				if err := tx.Where("opponent_finding_id = ? AND is_accepted = ? AND status = ?",
					findings[i].ID, true, models.RequestStatusActive).First(&accepted).Error; err == nil {
					if err := tx.Model(&accepted).Updates(map[string]interface{}{
						"status":      models.RequestStatusOverlappedCancelled,
						"is_accepted": false,
					}).Error; err != nil {
						return err
					}
					cancelled = append(cancelled, accepted.ID)
				}
			}
			if err := tx.Model(&findings[i]).Update("status", models.FindingStatusOverlappedCancelled).Error; err != nil {
				return err
			}
			cancelled = append(cancelled, findings[i].ID)
		}
	}

	if len(cancelled) == 0 {
		return nil
	}
	return auditCascade(tx, actorID, "opponent_overlap_cascade", "opponent_finding", seedFindingID, cancelled)
}

// CancelRequest withdraws a request. An accepted request can be cancelled by
// either side: the holder's cancel reopens the post, the requester's cancel
// marks the post opponent_cancelled.
func (svc *OpponentService) CancelRequest(db *gorm.DB, requestID, actorID uint) (*models.OpponentFindingRequest, error) {
	var request models.OpponentFindingRequest
	var finding models.OpponentFinding
	var notifyUserID uint
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, requestID).Error; err != nil {
			return utils.NewNotFound("not_found", "request not found")
		}
		if err := tx.First(&finding, request.OpponentFindingID).Error; err != nil {
			return utils.NewNotFound("post_not_found", "opponent finding not found")
		}
		if err := lockUserRow(tx, request.RequesterID); err != nil {
			return err
		}
		if request.Status != models.RequestStatusActive {
			return utils.NewConflict("already_decided", "the request is no longer active")
		}

		if !request.IsAccepted {
			if actorID != request.RequesterID {
				return utils.NewValidation("not_eligible", "only the requester can withdraw a pending request")
			}
			request.Status = models.RequestStatusSelfCancelled
			notifyUserID = finding.HolderID
			return tx.Model(&request).Update("status", models.RequestStatusSelfCancelled).Error
		}

		switch actorID {
		case finding.HolderID:
			if err := tx.Model(&finding).Update("status", models.FindingStatusFinding).Error; err != nil {
				return err
			}
			finding.Status = models.FindingStatusFinding
			notifyUserID = request.RequesterID
		case request.RequesterID:
			if err := tx.Model(&finding).Update("status", models.FindingStatusOpponentCancelled).Error; err != nil {
				return err
			}
			finding.Status = models.FindingStatusOpponentCancelled
			notifyUserID = finding.HolderID
		default:
			return utils.NewValidation("not_eligible", "only the holder or the requester can cancel the match")
		}

		request.Status = models.RequestStatusCancelled
		return tx.Model(&request).Updates(map[string]interface{}{
			"status":      models.RequestStatusCancelled,
			"is_accepted": false,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	go svc.Notifications.Publish([]uint{notifyUserID}, "opponent_cancelled", "Match Cancelled",
		"The match for your opponent finding was cancelled", "opponent_finding", finding.ID)

	return &request, nil
}

// CancelFinding closes a post for good. A matched opponent's accepted
// request is cancelled with it.
func (svc *OpponentService) CancelFinding(db *gorm.DB, findingID, actorID uint) (*models.OpponentFinding, error) {
	var finding models.OpponentFinding
	var opponentID uint
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&finding, findingID).Error; err != nil {
			return utils.NewNotFound("not_found", "opponent finding not found")
		}
		if finding.HolderID != actorID {
			return utils.NewValidation("not_eligible", "only the holder can cancel the post")
		}
		if finding.Status != models.FindingStatusFinding && finding.Status != models.FindingStatusAccepted {
			return utils.NewConflict("already_decided", "the post cannot be cancelled from its current state")
		}

		var accepted models.OpponentFindingRequest
		if err := tx.Where("opponent_finding_id = ? AND is_accepted = ? AND status = ?",
			finding.ID, true, models.RequestStatusActive).First(&accepted).Error; err == nil {
			if err := tx.Model(&accepted).Updates(map[string]interface{}{
				"status":      models.RequestStatusCancelled,
				"is_accepted": false,
			}).Error; err != nil {
				return err
			}
			opponentID = accepted.RequesterID
		}

		finding.Status = models.FindingStatusCancelled
		return tx.Model(&finding).Update("status", models.FindingStatusCancelled).Error
	})
	if err != nil {
		return nil, err
	}

	if opponentID != 0 {
		go svc.Notifications.Publish([]uint{opponentID}, "opponent_cancelled", "Match Cancelled",
			"The post holder cancelled the match", "opponent_finding", finding.ID)
	}
	return &finding, nil
}

// RestoreFinding reverses an overlap cancellation once the blocking claims
// are gone.
func (svc *OpponentService) RestoreFinding(db *gorm.DB, findingID, actorID uint) (*models.OpponentFinding, error) {
	var finding models.OpponentFinding
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&finding, findingID).Error; err != nil {
			return utils.NewNotFound("not_found", "opponent finding not found")
		}
		if finding.HolderID != actorID {
			return utils.NewValidation("not_eligible", "only the holder can restore the post")
		}
		if finding.Status != models.FindingStatusOverlappedCancelled {
			return utils.NewValidation("not_eligible", "only overlap-cancelled posts can be restored")
		}
		if err := lockUserRow(tx, finding.HolderID); err != nil {
			return err
		}
		if finding.IsOverdue(time.Now()) {
			return utils.NewValidation("expired", "the post's window has already passed")
		}

		blocking, err := svc.blockingClaims(tx, finding.HolderID, finding.Date, finding.StartSeconds, finding.EndSeconds, finding.ID, 0)
		if err != nil {
			return err
		}
		if !blocking.Empty() {
			return utils.NewConflict("still_overlapping", "an overlapping commitment still exists").WithDetails(blocking)
		}

		finding.Status = models.FindingStatusFinding
		return tx.Model(&finding).Update("status", models.FindingStatusFinding).Error
	})
	if err != nil {
		return nil, err
	}
	return &finding, nil
}

// RestoreRequest is the request-side mirror of RestoreFinding.
func (svc *OpponentService) RestoreRequest(db *gorm.DB, requestID, actorID uint) (*models.OpponentFindingRequest, error) {
	var request models.OpponentFindingRequest
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, requestID).Error; err != nil {
			return utils.NewNotFound("not_found", "request not found")
		}
		if request.RequesterID != actorID {
			return utils.NewValidation("not_eligible", "only the requester can restore the request")
		}
		if request.Status != models.RequestStatusOverlappedCancelled {
			return utils.NewValidation("not_eligible", "only overlap-cancelled requests can be restored")
		}
		if err := lockUserRow(tx, request.RequesterID); err != nil {
			return err
		}

		var finding models.OpponentFinding
		if err := tx.First(&finding, request.OpponentFindingID).Error; err != nil {
			return utils.NewNotFound("post_not_found", "opponent finding not found")
		}
		if finding.IsOverdue(time.Now()) {
			return utils.NewValidation("expired", "the post's window has already passed")
		}

		blocking, err := svc.blockingClaims(tx, request.RequesterID, finding.Date, finding.StartSeconds, finding.EndSeconds, 0, request.ID)
		if err != nil {
			return err
		}
		if !blocking.Empty() {
			return utils.NewConflict("still_overlapping", "an overlapping commitment still exists").WithDetails(blocking)
		}

		request.Status = models.RequestStatusActive
		return tx.Model(&request).Update("status", models.RequestStatusActive).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// CheckRestorableFinding is the read-only probe behind the restore button.
func (svc *OpponentService) CheckRestorableFinding(db *gorm.DB, findingID uint) (bool, error) {
	var finding models.OpponentFinding
	if err := db.First(&finding, findingID).Error; err != nil {
		return false, utils.NewNotFound("not_found", "opponent finding not found")
	}
	if finding.Status != models.FindingStatusOverlappedCancelled || finding.IsOverdue(time.Now()) {
		return false, nil
	}
	blocking, err := svc.blockingClaims(db, finding.HolderID, finding.Date, finding.StartSeconds, finding.EndSeconds, finding.ID, 0)
	if err != nil {
		return false, err
	}
	return blocking.Empty(), nil
}

// CheckRestorableRequest is the request-side probe.
func (svc *OpponentService) CheckRestorableRequest(db *gorm.DB, requestID uint) (bool, error) {
	var request models.OpponentFindingRequest
	if err := db.First(&request, requestID).Error; err != nil {
		return false, utils.NewNotFound("not_found", "request not found")
	}
	if request.Status != models.RequestStatusOverlappedCancelled {
		return false, nil
	}
	var finding models.OpponentFinding
	if err := db.First(&finding, request.OpponentFindingID).Error; err != nil {
		return false, utils.NewNotFound("post_not_found", "opponent finding not found")
	}
	if finding.IsOverdue(time.Now()) {
		return false, nil
	}
	blocking, err := svc.blockingClaims(db, request.RequesterID, finding.Date, finding.StartSeconds, finding.EndSeconds, 0, request.ID)
	if err != nil {
		return false, err
	}
	return blocking.Empty(), nil
}

// blockingClaims collects the person's open or matched posts and accepted
// requests that overlap the window. Overlap-cancelled siblings never block;
// that is what makes restoring one of two mutually overlapping cancelled
// posts possible once the accepted claim disappears.
func (svc *OpponentService) blockingClaims(tx *gorm.DB, personID uint, date time.Time, startSeconds, endSeconds int, skipFindingID, skipRequestID uint) (BlockingClaims, error) {
	var claims BlockingClaims

	if err := tx.Model(&models.OpponentFinding{}).
		Where("holder_id = ? AND status IN ? AND id <> ? AND date = ? AND start_seconds < ? AND end_seconds > ?",
			personID, []string{models.FindingStatusFinding, models.FindingStatusAccepted}, skipFindingID,
			date, endSeconds, startSeconds).
		Order("id ASC").Pluck("id", &claims.FindingIDs).Error; err != nil {
		return claims, err
	}

	if err := tx.Model(&models.OpponentFindingRequest{}).
		Joins("JOIN opponent_findings ON opponent_findings.id = opponent_finding_requests.opponent_finding_id").
		Where("opponent_finding_requests.requester_id = ? AND opponent_finding_requests.is_accepted = ? AND opponent_finding_requests.status = ? AND opponent_finding_requests.id <> ?",
			personID, true, models.RequestStatusActive, skipRequestID).
		Where("opponent_findings.date = ? AND opponent_findings.start_seconds < ? AND opponent_findings.end_seconds > ?",
			date, endSeconds, startSeconds).
		Order("opponent_finding_requests.id ASC").
		Pluck("opponent_finding_requests.id", &claims.RequestIDs).Error; err != nil {
		return claims, err
	}

	return claims, nil
}

// lockUserRow serializes all mutations of one person's active post/request
// set behind their user row.
func lockUserRow(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := lockForUpdate(tx).First(&user, userID).Error; err != nil {
		return utils.NewNotFound("not_found", "user not found")
	}
	return nil
}

// acceptedClaims narrows blockingClaims to accepted posts and accepted
// requests only.
func (svc *OpponentService) acceptedClaims(tx *gorm.DB, personID uint, date time.Time, startSeconds, endSeconds int) (BlockingClaims, error) {
	var claims BlockingClaims

	if err := tx.Model(&models.OpponentFinding{}).
		Where("holder_id = ? AND status = ? AND date = ? AND start_seconds < ? AND end_seconds > ?",
			personID, models.FindingStatusAccepted, date, endSeconds, startSeconds).
		Order("id ASC").Pluck("id", &claims.FindingIDs).Error; err != nil {
		return claims, err
	}

	if err := tx.Model(&models.OpponentFindingRequest{}).
		Joins("JOIN opponent_findings ON opponent_findings.id = opponent_finding_requests.opponent_finding_id").
		Where("opponent_finding_requests.requester_id = ? AND opponent_finding_requests.is_accepted = ? AND opponent_finding_requests.status = ?",
			personID, true, models.RequestStatusActive).
		Where("opponent_findings.date = ? AND opponent_findings.start_seconds < ? AND opponent_findings.end_seconds > ?",
			date, endSeconds, startSeconds).
		Order("opponent_finding_requests.id ASC").
		Pluck("opponent_finding_requests.id", &claims.RequestIDs).Error; err != nil {
		return claims, err
	}

	return claims, nil
}
