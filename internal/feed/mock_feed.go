package feed

import (
	"github.com/npezzotti/isupipe/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) PublishLivecomment(lc types.Livecomment) {
	m.Called(lc)
}

func (m *MockBroadcaster) PublishReaction(r types.Reaction) {
	m.Called(r)
}
