package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tablebook/models"
	"tablebook/services/intelligence/mocks"
	"tablebook/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var chatNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

type seqTokens struct{ n int }

func (s *seqTokens) NewID() string {
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

func (s *seqTokens) NewToken() (string, error) {
	s.n++
	return fmt.Sprintf("token-%03d", s.n), nil
}

type ChatServiceTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	clock   *utils.FixedClock
	store   *RedisSessionStore
	replies *mocks.MockReplyGenerator
	service *DefaultChatService
	ctx     context.Context
}

func (s *ChatServiceTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.clock = &utils.FixedClock{T: chatNow}

	ids := &seqTokens{}
	s.store = NewRedisSessionStore(s.client, s.clock, ids, 30*time.Minute, 4)
	s.replies = mocks.NewMockReplyGenerator(gomock.NewController(s.T()))
	s.service = NewChatService(s.store, NewSessionLock(s.client, ids, 5*time.Second, time.Second), s.replies, zap.NewNop())
	s.ctx = context.Background()
}

func (s *ChatServiceTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestChatServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ChatServiceTestSuite))
}

func (s *ChatServiceTestSuite) TestSessionContinuityAndIdleExpiry() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), []models.ChatMessage{}, "Hi there").Return("Hello!", nil)
	reply, id, err := s.service.Converse(s.ctx, "", "Hi there")
	s.Require().NoError(err)
	s.Equal("Hello!", reply)
	s.NotEmpty(id)

	s.clock.Advance(20 * time.Minute)
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), "Do you have vegan options?").
		DoAndReturn(func(_ context.Context, history []models.ChatMessage, _ string) (string, error) {
			s.Require().Len(history, 2)
			s.Equal(models.RoleUser, history[0].Role)
			s.Equal("Hi there", history[0].Content)
			s.Equal(models.RoleAssistant, history[1].Role)
			return "Yes, several.", nil
		})
	_, again, err := s.service.Converse(s.ctx, id, "Do you have vegan options?")
	s.Require().NoError(err)
	s.Equal(id, again)

	// The second turn slid the expiry, so 20 more minutes is still live.
	s.clock.Advance(20 * time.Minute)
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), "Thanks").Return("Any time.", nil)
	_, again, err = s.service.Converse(s.ctx, id, "Thanks")
	s.Require().NoError(err)
	s.Equal(id, again)

	s.clock.Advance(31 * time.Minute)
	s.replies.EXPECT().GenerateReply(gomock.Any(), []models.ChatMessage{}, "Still there?").Return("Hello again!", nil)
	_, fresh, err := s.service.Converse(s.ctx, id, "Still there?")
	s.Require().NoError(err)
	s.NotEqual(id, fresh)
}

func (s *ChatServiceTestSuite) TestUnknownSessionStartsFresh() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), []models.ChatMessage{}, "hello").Return("Hi!", nil)
	_, id, err := s.service.Converse(s.ctx, "made-up", "hello")
	s.Require().NoError(err)
	s.NotEqual("made-up", id)
}

func (s *ChatServiceTestSuite) TestHistoryIsTrimmed() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), gomock.Any()).Return("ok", nil).Times(3)
	_, id, err := s.service.Converse(s.ctx, "", "one")
	s.Require().NoError(err)
	_, _, err = s.service.Converse(s.ctx, id, "two")
	s.Require().NoError(err)
	_, _, err = s.service.Converse(s.ctx, id, "three")
	s.Require().NoError(err)

	session, created, err := s.store.GetOrCreate(s.ctx, id)
	s.Require().NoError(err)
	s.False(created)
	s.Require().Len(session.Messages, 4)
	s.Equal("two", session.Messages[0].Content)
	s.Equal("three", session.Messages[2].Content)
}

func (s *ChatServiceTestSuite) TestSelectionIsRecorded() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), gomock.Any()).Return("Noted.", nil).Times(2)
	_, id, err := s.service.Converse(s.ctx, "", "Table for 4 on 2025-06-10 please")
	s.Require().NoError(err)
	_, _, err = s.service.Converse(s.ctx, id, "make it 7:30pm")
	s.Require().NoError(err)

	sel, err := s.store.GetSelection(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(&models.SlotSelection{Date: "2025-06-10", Time: "19:30", PartySize: 4}, sel)
}

func (s *ChatServiceTestSuite) TestUnsafeReplyIsSanitized() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(`<p>See <a href="javascript:alert(1)">menu</a></p><script>steal()</script>`, nil)
	reply, id, err := s.service.Converse(s.ctx, "", "menu?")
	s.Require().NoError(err)
	s.NotContains(reply, "javascript")
	s.NotContains(reply, "script")

	session, _, err := s.store.GetOrCreate(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(reply, session.Messages[1].Content)
}

func (s *ChatServiceTestSuite) TestReplyFailureFallsBack() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("quota"))
	reply, _, err := s.service.Converse(s.ctx, "", "hello")
	s.Require().NoError(err)
	s.Equal(fallbackReply, reply)
}

func (s *ChatServiceTestSuite) TestEmptyMessage() {
	_, _, err := s.service.Converse(s.ctx, "", "   ")
	s.ErrorIs(err, ErrEmptyMessage)
}

func (s *ChatServiceTestSuite) TestEndSession() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), gomock.Any()).Return("Hi", nil)
	_, id, err := s.service.Converse(s.ctx, "", "hello")
	s.Require().NoError(err)

	s.Require().NoError(s.service.EndSession(s.ctx, id))
	s.False(s.mr.Exists(metaKey(id)))
	s.False(s.mr.Exists(messagesKey(id)))
	s.ErrorIs(s.store.AppendMessage(s.ctx, id, models.RoleUser, "late"), ErrSessionNotFound)
}

func (s *ChatServiceTestSuite) TestSessionKeysCarryIdleTTL() {
	s.replies.EXPECT().GenerateReply(gomock.Any(), gomock.Any(), gomock.Any()).Return("Hi", nil)
	_, id, err := s.service.Converse(s.ctx, "", "hello")
	s.Require().NoError(err)
	s.Equal(30*time.Minute, s.mr.TTL(metaKey(id)))
	s.Equal(30*time.Minute, s.mr.TTL(messagesKey(id)))
}

func (s *ChatServiceTestSuite) TestLockSerializesHolders() {
	lock := NewSessionLock(s.client, &seqTokens{}, 5*time.Second, 100*time.Millisecond)
	release, err := lock.Acquire(s.ctx, "abc")
	s.Require().NoError(err)

	_, err = lock.Acquire(s.ctx, "abc")
	s.ErrorIs(err, ErrLockTimeout)

	release()
	again, err := lock.Acquire(s.ctx, "abc")
	s.Require().NoError(err)
	again()
}

func (s *ChatServiceTestSuite) TestStaleReleaseKeepsNewHolder() {
	lock := NewSessionLock(s.client, &seqTokens{}, time.Second, 100*time.Millisecond)
	release, err := lock.Acquire(s.ctx, "abc")
	s.Require().NoError(err)

	s.mr.FastForward(2 * time.Second)
	second, err := lock.Acquire(s.ctx, "abc")
	s.Require().NoError(err)

	release()
	s.True(s.mr.Exists(lockPrefix + "abc"))
	second()
	s.False(s.mr.Exists(lockPrefix + "abc"))
}
