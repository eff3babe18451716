// Package mock provides a test double for the query.Service interface.
package mock

import (
	"context"
	"sync"

	"github.com/ldrpitr/samvaad/internal/query"
)

// StudentCall records a single invocation of StudentQuery.
type StudentCall struct {
	Ctx context.Context
	Req query.StudentRequest
}

// AgentCall records a single invocation of AgentQuery.
type AgentCall struct {
	Ctx context.Context
	Req query.AgentRequest
}

// Service is a mock implementation of query.Service. Zero values return an
// empty answer and nil error; set Err to inject dispatch failures.
type Service struct {
	mu sync.Mutex

	// Answer is returned from both query methods.
	Answer string

	// Err, if non-nil, is returned from both query methods.
	Err error

	// StudentCalls and AgentCalls record invocations in order.
	StudentCalls []StudentCall
	AgentCalls   []AgentCall
}

var _ query.Service = (*Service)(nil)

// StudentQuery implements query.Service.
func (s *Service) StudentQuery(ctx context.Context, req query.StudentRequest) (string, error) {
	s.mu.Lock()
	s.StudentCalls = append(s.StudentCalls, StudentCall{Ctx: ctx, Req: req})
	answer, err := s.Answer, s.Err
	s.mu.Unlock()
	return answer, err
}

// AgentQuery implements query.Service.
func (s *Service) AgentQuery(ctx context.Context, req query.AgentRequest) (string, error) {
	s.mu.Lock()
	s.AgentCalls = append(s.AgentCalls, AgentCall{Ctx: ctx, Req: req})
	answer, err := s.Answer, s.Err
	s.mu.Unlock()
	return answer, err
}

// Students returns a snapshot of recorded StudentQuery calls.
func (s *Service) Students() []StudentCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StudentCall, len(s.StudentCalls))
	copy(out, s.StudentCalls)
	return out
}

// Agents returns a snapshot of recorded AgentQuery calls.
func (s *Service) Agents() []AgentCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AgentCall, len(s.AgentCalls))
	copy(out, s.AgentCalls)
	return out
}
