package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockSMSActivateServer emulates the SMS vendor's handler API for
// factory tests: rent a number, deliver a code after a delay, confirm
// or cancel.
type MockSMSActivateServer struct {
	Server      *httptest.Server
	Balance     float64
	CodeDelay   time.Duration
	NextCode    string
	ShouldFail  bool
	FailureBody string

	mu          sync.Mutex
	nextID      int
	activations map[string]*MockActivation
	RequestLog  []MockRequest
}

// MockActivation is one rented number's state.
type MockActivation struct {
	ID          string
	PhoneNumber string
	Status      string
	RentedAt    time.Time
}

// MockRequest logs one incoming vendor call.
type MockRequest struct {
	Action    string
	Query     map[string]string
	Timestamp time.Time
}

func NewMockSMSActivateServer() *MockSMSActivateServer {
	mock := &MockSMSActivateServer{
		Balance:     1000.0,
		NextCode:    "12345",
		activations: make(map[string]*MockActivation),
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

func (m *MockSMSActivateServer) Close() {
	m.Server.Close()
}

// URL is the base endpoint to hand the client under test.
func (m *MockSMSActivateServer) URL() string {
	return m.Server.URL
}

func (m *MockSMSActivateServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := map[string]string{}
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}
	action := query["action"]
	m.RequestLog = append(m.RequestLog, MockRequest{
		Action:    action,
		Query:     query,
		Timestamp: time.Now(),
	})

	if m.ShouldFail {
		fmt.Fprint(w, m.FailureBody)
		return
	}

	switch action {
	case "getBalance":
		fmt.Fprintf(w, "ACCESS_BALANCE:%.2f", m.Balance)

	case "getNumber":
		m.nextID++
		id := fmt.Sprintf("%d", 9000000+m.nextID)
		phone := fmt.Sprintf("7926%07d", m.nextID)
		m.activations[id] = &MockActivation{
			ID:          id,
			PhoneNumber: phone,
			Status:      "waiting",
			RentedAt:    time.Now(),
		}
		fmt.Fprintf(w, "ACCESS_NUMBER:%s:%s", id, phone)

	case "getStatus":
		activation, ok := m.activations[query["id"]]
		if !ok {
			fmt.Fprint(w, "NO_ACTIVATION")
			return
		}
		if activation.Status == "cancelled" {
			fmt.Fprint(w, "STATUS_CANCEL")
			return
		}
		if time.Since(activation.RentedAt) < m.CodeDelay {
			fmt.Fprint(w, "STATUS_WAIT_CODE")
			return
		}
		fmt.Fprintf(w, "STATUS_OK:%s", m.NextCode)

	case "setStatus":
		activation, ok := m.activations[query["id"]]
		if !ok {
			fmt.Fprint(w, "NO_ACTIVATION")
			return
		}
		if query["status"] == "-1" {
			activation.Status = "cancelled"
		} else {
			activation.Status = "confirmed"
		}
		fmt.Fprint(w, "ACCESS_ACTIVATION")

	default:
		fmt.Fprint(w, "BAD_ACTION")
	}
}

// ActivationCount reports rented numbers, for assertions.
func (m *MockSMSActivateServer) ActivationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activations)
}
