package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Action names the partner event kind.
type Action string

const (
	ActionMessageCreated        Action = "message.created"
	ActionPostCreated           Action = "post.created"
	ActionReactionCreated       Action = "reaction.created"
	ActionMembershipWentValid   Action = "membership.went_valid"
	ActionMembershipWentInvalid Action = "membership.went_invalid"
	ActionPaymentSucceeded      Action = "payment.succeeded"
	ActionPaymentFailed         Action = "payment.failed"
)

// ErrInvalidPayload wraps every schema violation.
var ErrInvalidPayload = errors.New("invalid webhook payload")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// Event is the closed set of webhook payloads. Only types in this package
// implement it; consumers switch on the concrete type and must handle
// Unknown explicitly.
type Event interface {
	Action() Action
	Identity() Subject
	isEvent()
}

// Subject identifies who an event is about.
type Subject struct {
	EventID  string
	TenantID string
	MemberID string
}

// Identity returns the subject; variants expose it through embedding.
func (s Subject) Identity() Subject { return s }

// MessageCreated is a chat message posted by a member.
type MessageCreated struct {
	Subject
	ChannelID string
}

// PostCreated is a forum post.
type PostCreated struct {
	Subject
	ForumID string
	Title   string
}

// ReactionCreated is a reaction left on someone's content.
type ReactionCreated struct {
	Subject
	Emoji    string
	TargetID string
}

// MembershipWentValid reports a membership becoming active.
type MembershipWentValid struct {
	Subject
	MembershipID string
	Tier         string
}

// MembershipWentInvalid reports a membership lapsing or being cancelled.
type MembershipWentInvalid struct {
	Subject
	MembershipID string
}

// PaymentSucceeded reports a successful charge.
type PaymentSucceeded struct {
	Subject
	PaymentID string
	Tier      string
}

// PaymentFailed reports a failed charge.
type PaymentFailed struct {
	Subject
	PaymentID string
	Tier      string
}

// Unknown is any action this service does not process. It is acknowledged.
type Unknown struct {
	Subject
	Name string
}

func (MessageCreated) Action() Action        { return ActionMessageCreated }
func (PostCreated) Action() Action           { return ActionPostCreated }
func (ReactionCreated) Action() Action       { return ActionReactionCreated }
func (MembershipWentValid) Action() Action   { return ActionMembershipWentValid }
func (MembershipWentInvalid) Action() Action { return ActionMembershipWentInvalid }
func (PaymentSucceeded) Action() Action      { return ActionPaymentSucceeded }
func (PaymentFailed) Action() Action         { return ActionPaymentFailed }
func (u Unknown) Action() Action             { return Action(u.Name) }

func (MessageCreated) isEvent()        {}
func (PostCreated) isEvent()           {}
func (ReactionCreated) isEvent()       {}
func (MembershipWentValid) isEvent()   {}
func (MembershipWentInvalid) isEvent() {}
func (PaymentSucceeded) isEvent()      {}
func (PaymentFailed) isEvent()         {}
func (Unknown) isEvent()               {}

// payload is the wire envelope.
type payload struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// data carries every field any variant reads; each variant validates the
// subset it needs.
type data struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	TenantID     string `json:"tenant_id"`
	CompanyID    string `json:"company_id"`
	ChannelID    string `json:"channel_id"`
	ForumID      string `json:"forum_id"`
	Title        string `json:"title"`
	Emoji        string `json:"emoji"`
	TargetID     string `json:"target_id"`
	MembershipID string `json:"membership_id"`
	PlanID       string `json:"plan_id"`
	Tier         string `json:"tier"`
}

// Parse decodes and validates a raw webhook body into an Event. eventID is
// the de-duplication id chosen by EventID and is carried on the Subject.
func Parse(body []byte, eventID string) (Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, invalid("body is not JSON: %v", err)
	}
	action := strings.TrimSpace(p.Action)
	if action == "" {
		return nil, invalid("action is required")
	}
	if len(p.Data) == 0 || string(p.Data) == "null" {
		return nil, invalid("data is required")
	}
	var d data
	if err := json.Unmarshal(p.Data, &d); err != nil {
		return nil, invalid("data must be an object: %v", err)
	}

	subj := Subject{
		EventID:  eventID,
		TenantID: strings.TrimSpace(firstNonEmpty(d.TenantID, d.CompanyID)),
		MemberID: strings.TrimSpace(d.UserID),
	}

	switch Action(action) {
	case ActionMessageCreated:
		if err := requireSubject(subj); err != nil {
			return nil, err
		}
		return MessageCreated{Subject: subj, ChannelID: d.ChannelID}, nil

	case ActionPostCreated:
		if err := requireSubject(subj); err != nil {
			return nil, err
		}
		return PostCreated{Subject: subj, ForumID: d.ForumID, Title: d.Title}, nil

	case ActionReactionCreated:
		if err := requireSubject(subj); err != nil {
			return nil, err
		}
		return ReactionCreated{Subject: subj, Emoji: d.Emoji, TargetID: d.TargetID}, nil

	case ActionMembershipWentValid:
		if err := requireSubject(subj); err != nil {
			return nil, err
		}
		mid := firstNonEmpty(d.MembershipID, d.ID)
		if mid == "" {
			return nil, invalid("data.id (membership) is required")
		}
		return MembershipWentValid{Subject: subj, MembershipID: mid, Tier: firstNonEmpty(d.Tier, d.PlanID)}, nil

	case ActionMembershipWentInvalid:
		if err := requireSubject(subj); err != nil {
			return nil, err
		}
		return MembershipWentInvalid{Subject: subj, MembershipID: firstNonEmpty(d.MembershipID, d.ID)}, nil

	case ActionPaymentSucceeded:
		if err := requireSubject(subj); err != nil {
			return nil, err
		}
		return PaymentSucceeded{Subject: subj, PaymentID: d.ID, Tier: firstNonEmpty(d.Tier, d.PlanID)}, nil

	case ActionPaymentFailed:
		if err := requireSubject(subj); err != nil {
			return nil, err
		}
		return PaymentFailed{Subject: subj, PaymentID: d.ID, Tier: firstNonEmpty(d.Tier, d.PlanID)}, nil

	default:
		return Unknown{Subject: subj, Name: action}, nil
	}
}

func requireSubject(s Subject) error {
	if s.MemberID == "" {
		return invalid("data.user_id is required")
	}
	if s.TenantID == "" {
		return invalid("data.tenant_id or data.company_id is required")
	}
	return nil
}

// EventID derives the de-duplication id for a raw body without a full
// decode. It prefers data.id; otherwise it combines the action, the subject
// and a timestamp (data.created_at, falling back to the signed timestamp).
// ok is false when the body is not JSON or carries no action.
func EventID(body []byte, signedAt string) (id string, ok bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	res := gjson.GetManyBytes(body, "action", "data.id", "data.user_id", "data.membership_id", "data.created_at")
	action := strings.TrimSpace(res[0].String())
	if action == "" {
		return "", false
	}
	if v := strings.TrimSpace(res[1].String()); v != "" {
		return action + ":" + v, true
	}
	subject := firstNonEmpty(res[2].String(), res[3].String())
	ts := firstNonEmpty(res[4].String(), signedAt)
	return action + ":" + subject + ":" + ts, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
