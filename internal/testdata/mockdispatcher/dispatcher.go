package mockdispatcher

import (
	"github.com/stretchr/testify/mock"

	"interaction-gateway/internal/dispatcher"
	"interaction-gateway/internal/model"
)

type Dispatcher struct {
	mock.Mock
}

func (m *Dispatcher) Dispatch(event model.Event) <-chan dispatcher.Result {
	m.Called(event)
	res := make(chan dispatcher.Result, 1)
	res <- dispatcher.Result{EventID: event.Header().EventID}
	close(res)
	return res
}
