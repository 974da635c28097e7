// Package sms implements the SMS code challenge. Codes are handed to a Sender
// at delivery time; the caller only ever sees a masked destination.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/google/uuid"
)

// MobileParam is the request parameter carrying the destination number.
const MobileParam = "mobile"

var (
	ErrNoMobile  = errors.New("sms: mobile number is missing")
	ErrBadMobile = errors.New("sms: mobile number is malformed")

	mobileRegexp = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
)

func init() {
	challenge.Register(challenge.TypeSMS, challenge.FactoryFunc(Build))
}

// Message is one code to send.
type Message struct {
	To        string
	Code      string
	Token     string
	ExpiresAt time.Time
}

// Sender is the delivery service that actually transmits codes.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender records deliveries in the log without sending anything. The code
// itself is not logged.
type LogSender struct {
	Logger *slog.Logger
}

func (l LogSender) Send(ctx context.Context, msg Message) error {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}

	lg.InfoContext(ctx, "sms code not sent, no gateway configured", "to", Mask(msg.To), "token", msg.Token, "expires_at", msg.ExpiresAt)
	return nil
}

// Build assembles the sms processor delivering through a LogSender.
func Build(in challenge.BuildInput) (challenge.Impl, error) {
	return challenge.NewProcessor(in, Generator{}, &Deliverer{Sender: LogSender{Logger: in.Logger}}, nil), nil
}

// Generator issues numeric codes for a validated destination.
type Generator struct{}

func (Generator) Generate(in *challenge.GenerateInput) (*challenge.Challenge, error) {
	mobile := strings.TrimSpace(internal.FormValue(in.Request, MobileParam))
	if err := ValidMobile(mobile); err != nil {
		return nil, challenge.NewError(challenge.KindParameterError, in.Type, err).WithField(MobileParam)
	}

	code, err := internal.RandomString("0123456789", in.Config.Length)
	if err != nil {
		return nil, err
	}

	token, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("can't generate token: %w", err)
	}

	return &challenge.Challenge{
		Code:      code,
		ExpiresAt: in.Now.Add(in.Config.TTL),
		Token:     token.String(),
		Reusable:  in.Config.Reusable,
		Metadata: map[string]string{
			MobileParam:   mobile,
			"destination": Mask(mobile),
		},
	}, nil
}

// ValidMobile checks a destination number.
func ValidMobile(mobile string) error {
	switch {
	case mobile == "":
		return ErrNoMobile
	case !mobileRegexp.MatchString(mobile):
		return ErrBadMobile
	default:
		return nil
	}
}

// Mask hides all but the last four digits of a number.
func Mask(mobile string) string {
	if len(mobile) <= 4 {
		return strings.Repeat("*", len(mobile))
	}

	prefix := ""
	rest := mobile
	if strings.HasPrefix(rest, "+") {
		prefix, rest = "+", rest[1:]
	}

	keep := min(4, len(rest))
	return prefix + strings.Repeat("*", len(rest)-keep) + rest[len(rest)-keep:]
}

// Deliverer sends the code and acknowledges with the masked destination.
type Deliverer struct {
	Sender Sender
}

func (d *Deliverer) Deliver(w http.ResponseWriter, r *http.Request, c *challenge.Challenge) error {
	if err := d.Sender.Send(r.Context(), Message{
		To:        c.Metadata[MobileParam],
		Code:      c.Code,
		Token:     c.Token,
		ExpiresAt: c.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("sms: can't send code: %w", err)
	}

	return challenge.WriteJSON(w, http.StatusOK, challenge.Ack{
		Type:      challenge.TypeSMS,
		Token:     c.Token,
		ExpiresAt: c.ExpiresAt,
		Details: map[string]any{
			"destination": c.Metadata["destination"],
		},
	})
}
