package gate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/config"
)

func TestMissingProcessorAtRuntime(t *testing.T) {
	route, err := config.ParseRoute(challenge.TypeCustomize, "/custom")
	if err != nil {
		t.Fatal(err)
	}

	var got *challenge.Error
	g := &Gate{
		table:      NewTable([]config.Route{route}),
		registry:   challenge.NewRegistry(),
		conditions: map[challenge.Type]*CELChecker{},
		failure: FailureHandlerFunc(func(w http.ResponseWriter, r *http.Request, err *challenge.Error) {
			got = err
		}),
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached upstream")
	})

	g.Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/custom", nil))

	if !errors.Is(got, challenge.ErrIllegalChallengeType) {
		t.Errorf("wanted illegal challenge type, got %v", got)
	}

	if got.StatusCode != http.StatusInternalServerError {
		t.Errorf("wanted 500, got %d", got.StatusCode)
	}
}
