package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/TecharoHQ/codegate/lib/cache"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/challenge/challengetest"
)

type outbox struct {
	lock sync.Mutex
	msgs []Message
	err  error
}

func (o *outbox) Send(ctx context.Context, msg Message) error {
	o.lock.Lock()
	defer o.lock.Unlock()

	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func TestValidMobile(t *testing.T) {
	for _, tt := range []struct {
		in  string
		err error
	}{
		{in: "+4915112345678"},
		{in: "13800138000"},
		{in: "123456"},
		{in: "", err: ErrNoMobile},
		{in: "12345", err: ErrBadMobile},
		{in: "+1234567890123456", err: ErrBadMobile},
		{in: "555-1234", err: ErrBadMobile},
		{in: "++123456", err: ErrBadMobile},
	} {
		t.Run(tt.in, func(t *testing.T) {
			if err := ValidMobile(tt.in); !errors.Is(err, tt.err) {
				t.Errorf("want %v, got %v", tt.err, err)
			}
		})
	}
}

func TestMask(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"+4915112345678", "+*********5678"},
		{"13800138000", "*******8000"},
		{"1234", "****"},
	} {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newImpl(t *testing.T, o *outbox) (challenge.Impl, challenge.Store) {
	t.Helper()

	st := cache.NewSession(nil)
	impl, err := Build(challenge.BuildInput{
		Config:    challenge.DefaultTypeConfig(challenge.TypeSMS),
		Store:     st,
		Deliverer: &Deliverer{Sender: o},
	})
	if err != nil {
		t.Fatal(err)
	}
	challenge.NewRegistry(impl)

	return impl, st
}

func TestProduce(t *testing.T) {
	o := &outbox{}
	impl, _ := newImpl(t, o)
	sess := challengetest.Session(t)

	rec := httptest.NewRecorder()
	req := challengetest.Request(t, http.MethodGet, "/code/sms", sess, url.Values{MobileParam: {"+4915112345678"}})
	if err := impl.Produce(rec, req); err != nil {
		t.Fatal(err)
	}

	if len(o.msgs) != 1 {
		t.Fatalf("wanted one message, got %d", len(o.msgs))
	}
	msg := o.msgs[0]

	if msg.To != "+4915112345678" || len(msg.Code) != 6 {
		t.Errorf("wrong message %+v", msg)
	}

	body := rec.Body.String()
	if strings.Contains(body, `"code"`) || strings.Contains(body, "12345678") {
		t.Errorf("acknowledgement leaks the code or the number: %s", body)
	}

	var ack challenge.Ack
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Type != challenge.TypeSMS || ack.Token != msg.Token || ack.Details["destination"] != "+*********5678" {
		t.Errorf("wrong acknowledgement %+v", ack)
	}

	req = challengetest.Request(t, http.MethodPost, "/transfer", sess, url.Values{"smsCode": {msg.Code}})
	if err := impl.Validate(req); err != nil {
		t.Errorf("correct code rejected: %v", err)
	}
}

func TestProduceParameterError(t *testing.T) {
	for _, mobile := range []string{"", "call me"} {
		t.Run(mobile, func(t *testing.T) {
			o := &outbox{}
			impl, _ := newImpl(t, o)

			vals := url.Values{}
			if mobile != "" {
				vals.Set(MobileParam, mobile)
			}

			err := impl.Produce(httptest.NewRecorder(), challengetest.Request(t, http.MethodGet, "/code/sms", challengetest.Session(t), vals))

			var cerr *challenge.Error
			if !errors.As(err, &cerr) {
				t.Fatalf("wanted *challenge.Error, got %v", err)
			}
			if cerr.Kind != challenge.KindParameterError || cerr.Field != MobileParam || cerr.StatusCode != http.StatusBadRequest {
				t.Errorf("wrong error %+v", cerr)
			}
			if len(o.msgs) != 0 {
				t.Error("nothing should be sent for a bad number")
			}
		})
	}
}

func TestSendFailureCleansUp(t *testing.T) {
	o := &outbox{err: errors.New("gateway timeout")}
	impl, st := newImpl(t, o)
	sess := challengetest.Session(t)

	err := impl.Produce(httptest.NewRecorder(), challengetest.Request(t, http.MethodGet, "/code/sms", sess, url.Values{MobileParam: {"13800138000"}}))
	if !errors.Is(err, challenge.ErrGenerationFailure) {
		t.Fatalf("wanted GenerationFailure, got %v", err)
	}

	if _, err := st.Fetch(t.Context(), sess, challenge.TypeSMS); !errors.Is(err, challenge.ErrNotFound) {
		t.Error("code that was never sent is still cached")
	}
}

func TestLogSender(t *testing.T) {
	if err := (LogSender{}).Send(t.Context(), Message{To: "13800138000", Code: "123456"}); err != nil {
		t.Error(err)
	}
}
