package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// NotificationService emits state-transition events to the external
// notification webhook. Delivery and retries are the subscriber's
// responsibility; failures here are logged and dropped.
type NotificationService struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewNotificationService creates a new notification service. An empty URL
// disables emission entirely.
func NewNotificationService(webhookURL string) *NotificationService {
	return &NotificationService{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// IsEnabled checks if notification is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

type transitionEvent struct {
	Event    string    `json:"event"`
	PoolID   uint      `json:"pool_id"`
	MemberID uint      `json:"member_id"`
	CycleID  uint      `json:"cycle_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

func (s *NotificationService) emit(ev transitionEvent) {
	if !s.enabled {
		return
	}
	ev.At = time.Now().UTC()

	body, err := json.Marshal(ev)
	if err != nil {
		return
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("⚠️ Notification %s dropped: %v", ev.Event, err)
		return
	}
	defer resp.Body.Close()
}

// NotifyMembershipApproved emits a membership-approved event
func (s *NotificationService) NotifyMembershipApproved(poolID, memberID uint) {
	s.emit(transitionEvent{Event: "membership.approved", PoolID: poolID, MemberID: memberID})
}

// NotifyMembershipRejected emits a membership-rejected event
func (s *NotificationService) NotifyMembershipRejected(poolID, memberID uint, reason string) {
	s.emit(transitionEvent{Event: "membership.rejected", PoolID: poolID, MemberID: memberID, Reason: reason})
}

// NotifyEntryOverdue emits a ledger-entry-overdue event
func (s *NotificationService) NotifyEntryOverdue(poolID, memberID, cycleID uint) {
	s.emit(transitionEvent{Event: "ledger.overdue", PoolID: poolID, MemberID: memberID, CycleID: cycleID})
}
