package verify

import (
	"errors"
	"fmt"
	"log"
)

// State is a stage of one verification attempt
type State string

// States for the verification process. Completed and Error are terminal.
const (
	StateInitial             State = "initial"
	StateCheckingStatus      State = "checking_status"
	StateTestingNotify       State = "testing_notify_channel"
	StateCreatingToken       State = "creating_token"
	StateSendingVerification State = "sending_verification"
	StateCompleted           State = "completed"
	StateError               State = "error"
)

// Outcome categorizes the single user-facing message a finished attempt
// produces. Not every completed attempt means a link was sent; callers
// must branch on the outcome, never on the state alone.
type Outcome string

const (
	OutcomeLinkSent        Outcome = "link_sent"
	OutcomeAlreadyVerified Outcome = "already_verified"
	OutcomeEnableDMs       Outcome = "enable_dms"
	OutcomePending         Outcome = "pending"
	OutcomeError           Outcome = "error"
)

// ErrChannelClosed reports that the user's private notification channel
// rejected the probe because the user has DMs disabled. A normal terminal
// outcome, not a failure.
var ErrChannelClosed = errors.New("notify channel closed by user")

// Notifier is the DM-capable collaborator the machine sends through
type Notifier interface {
	// Probe sends and removes a throwaway message to confirm the channel
	// is open. Returns ErrChannelClosed when the user has it disabled.
	Probe(discordID int64) error

	// SendVerification delivers the verification link
	SendVerification(discordID int64, link string) error
}

// Issuer creates correlation tokens
type Issuer interface {
	Issue(discordID int64) (string, error)
}

// StatusChecker is the read side of the link store the machine needs
type StatusChecker interface {
	IsVerified(discordID int64) (bool, error)
}

// Result is the terminal product of one verification attempt. Token is set
// only for OutcomeLinkSent. Message is safe to surface verbatim.
type Result struct {
	State   State
	Outcome Outcome
	Token   string
	Message string
}

// Sanitized user-facing error messages. Raw collaborator errors are logged
// internally, never surfaced.
const (
	msgStoreUnavailable = "Failed to check verification status. Please try again later."
	msgProbeFailed      = "Something went wrong while testing DM permissions. Please try again."
	msgIssueFailed      = "Failed to create verification token. Please try again later."
	msgSendFailed       = "Verification link could not be sent. Please ensure DMs are enabled and try again."
)

// Machine drives a single verification attempt for one Discord account
// through its ordered states. It runs once per invocation with no internal
// parallelism; every collaborator call may block.
type Machine struct {
	status   StatusChecker
	issuer   Issuer
	notifier Notifier
	baseURL  string
}

// NewMachine creates a verification state machine
func NewMachine(status StatusChecker, issuer Issuer, notifier Notifier, verificationBaseURL string) *Machine {
	return &Machine{
		status:   status,
		issuer:   issuer,
		notifier: notifier,
		baseURL:  verificationBaseURL,
	}
}

type attempt struct {
	discordID int64
	state     State
	token     string
	outcome   Outcome
	message   string
}

// Run processes one verification attempt to a terminal state
func (m *Machine) Run(discordID int64) Result {
	a := &attempt{discordID: discordID, state: StateInitial}

	for a.state != StateCompleted && a.state != StateError {
		switch a.state {
		case StateInitial:
			// Records the attempt; unconditional.
			log.Printf("Verify: attempt started for user %d", discordID)
			a.state = StateCheckingStatus
		case StateCheckingStatus:
			m.checkStatus(a)
		case StateTestingNotify:
			m.testNotifyChannel(a)
		case StateCreatingToken:
			m.createToken(a)
		case StateSendingVerification:
			m.sendVerification(a)
		}
	}

	return Result{State: a.state, Outcome: a.outcome, Token: a.token, Message: a.message}
}

func (m *Machine) checkStatus(a *attempt) {
	verified, err := m.status.IsVerified(a.discordID)
	if err != nil {
		log.Printf("Verify: status check failed for user %d: %v", a.discordID, err)
		a.fail(msgStoreUnavailable)
		return
	}

	if verified {
		log.Printf("Verify: user %d is already verified", a.discordID)
		a.complete(OutcomeAlreadyVerified)
		return
	}

	a.state = StateTestingNotify
}

func (m *Machine) testNotifyChannel(a *attempt) {
	err := m.notifier.Probe(a.discordID)
	if errors.Is(err, ErrChannelClosed) {
		log.Printf("Verify: user %d has DMs disabled", a.discordID)
		a.complete(OutcomeEnableDMs)
		return
	}
	if err != nil {
		log.Printf("Verify: DM probe failed for user %d: %v", a.discordID, err)
		a.fail(msgProbeFailed)
		return
	}

	a.state = StateCreatingToken
}

func (m *Machine) createToken(a *attempt) {
	token, err := m.issuer.Issue(a.discordID)
	switch {
	case errors.Is(err, ErrPendingTooRecent):
		a.complete(OutcomePending)
	case errors.Is(err, ErrAlreadyVerified):
		// Raced with a finalization since the status check.
		a.complete(OutcomeAlreadyVerified)
	case err != nil:
		log.Printf("Verify: token issue failed for user %d: %v", a.discordID, err)
		a.fail(msgIssueFailed)
	default:
		a.token = token
		a.state = StateSendingVerification
	}
}

func (m *Machine) sendVerification(a *attempt) {
	link := fmt.Sprintf("%s/verify?token=%s", m.baseURL, a.token)
	if err := m.notifier.SendVerification(a.discordID, link); err != nil {
		// The probe passed moments ago; the user revoked DMs mid-flow or
		// the send failed outright. Either way the token stays pending.
		log.Printf("Verify: link send failed for user %d: %v", a.discordID, err)
		a.token = ""
		a.fail(msgSendFailed)
		return
	}

	log.Printf("Verify: link sent to user %d", a.discordID)
	a.complete(OutcomeLinkSent)
}

func (a *attempt) complete(outcome Outcome) {
	a.outcome = outcome
	a.state = StateCompleted
}

func (a *attempt) fail(message string) {
	a.outcome = OutcomeError
	a.message = message
	a.state = StateError
}
