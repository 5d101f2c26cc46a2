package timeline

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/models"
)

func chatAt(seconds int) models.ChatMessage {
	return models.ChatMessage{
		ID:              uuid.New(),
		AppearAtSeconds: seconds,
		SenderName:      "Maya",
		Content:         "hello",
		MessageType:     models.ChatComment,
	}
}

func intPtr(v int) *int { return &v }

func TestWindowDeltaAndIdempotence(t *testing.T) {
	s := NewStore([]models.ChatMessage{chatAt(10), chatAt(20), chatAt(30)}, nil, nil)

	w := s.Window(0, 25)
	require.Len(t, w.Chat, 2)
	assert.Equal(t, 10, w.Chat[0].AppearAtSeconds)
	assert.Equal(t, 20, w.Chat[1].AppearAtSeconds)
	assert.False(t, w.Rewound)

	// Same position replayed: nothing new.
	w = s.Window(25, 25)
	assert.Empty(t, w.Chat)

	w = s.Window(25, 35)
	require.Len(t, w.Chat, 1)
	assert.Equal(t, 30, w.Chat[0].AppearAtSeconds)
}

func TestWindowRewindRecomputesVisibleSet(t *testing.T) {
	s := NewStore([]models.ChatMessage{chatAt(10), chatAt(20), chatAt(30)}, nil, nil)

	w := s.Window(25, 15)
	assert.True(t, w.Rewound)
	require.Len(t, w.Chat, 1)
	assert.Equal(t, 10, w.Chat[0].AppearAtSeconds)
}

func TestChatOrderingWithinSameSecond(t *testing.T) {
	a := chatAt(10)
	a.SortOrder = 2
	b := chatAt(10)
	b.SortOrder = 1
	s := NewStore([]models.ChatMessage{a, b}, nil, nil)

	w := s.Window(0, 10)
	require.Len(t, w.Chat, 2)
	assert.Equal(t, 1, w.Chat[0].SortOrder)
	assert.Equal(t, 2, w.Chat[1].SortOrder)
}

func TestActiveOfferWindow(t *testing.T) {
	offer := models.TimedOffer{
		ID:              uuid.New(),
		AppearAtSeconds: 300,
		HideAtSeconds:   intPtr(600),
		Title:           "Launch price",
		ButtonText:      "Buy",
		ButtonURL:       "https://example.com",
	}
	s := NewStore(nil, []models.TimedOffer{offer}, nil)

	assert.Nil(t, s.ActiveOffer(290))
	require.NotNil(t, s.ActiveOffer(305))
	assert.Equal(t, offer.ID, s.ActiveOffer(305).ID)
	assert.Nil(t, s.ActiveOffer(605))
	// Boundary: appear is inclusive, hide exclusive.
	assert.NotNil(t, s.ActiveOffer(300))
	assert.Nil(t, s.ActiveOffer(600))
}

func TestActiveOfferLastOneWins(t *testing.T) {
	first := models.TimedOffer{ID: uuid.New(), AppearAtSeconds: 100, Title: "A", ButtonText: "x", ButtonURL: "y"}
	second := models.TimedOffer{ID: uuid.New(), AppearAtSeconds: 200, Title: "B", ButtonText: "x", ButtonURL: "y"}
	s := NewStore(nil, []models.TimedOffer{second, first}, nil)

	require.NotNil(t, s.ActiveOffer(150))
	assert.Equal(t, first.ID, s.ActiveOffer(150).ID)
	require.NotNil(t, s.ActiveOffer(250))
	assert.Equal(t, second.ID, s.ActiveOffer(250).ID)
}

func TestRewardsDelta(t *testing.T) {
	r := models.Reward{ID: uuid.New(), AppearAtSeconds: 42, Title: "Workbook"}
	s := NewStore(nil, nil, []models.Reward{r})

	assert.Empty(t, s.Window(0, 41).Rewards)
	require.Len(t, s.Window(41, 45).Rewards, 1)
	assert.Empty(t, s.Window(45, 50).Rewards)
}

func TestValidateOffer(t *testing.T) {
	base := models.TimedOffer{AppearAtSeconds: 10, Title: "t", ButtonText: "b", ButtonURL: "u"}

	o := base
	require.NoError(t, ValidateOffer(&o, 1800))

	o = base
	o.HideAtSeconds = intPtr(10)
	assert.ErrorIs(t, ValidateOffer(&o, 1800), ErrHideBeforeAppear)

	o = base
	o.AppearAtSeconds = -1
	assert.ErrorIs(t, ValidateOffer(&o, 1800), ErrNegativeAppearTime)

	o = base
	o.AppearAtSeconds = 2000
	assert.ErrorIs(t, ValidateOffer(&o, 1800), ErrBeyondDuration)
}

func TestValidateChatMessage(t *testing.T) {
	m := models.ChatMessage{AppearAtSeconds: 5, SenderName: "Maya", Content: "hi", MessageType: models.ChatComment}
	require.NoError(t, ValidateChatMessage(&m, 1800))

	m.MessageType = "SHOUT"
	assert.Error(t, ValidateChatMessage(&m, 1800))

	m.MessageType = models.ChatComment
	m.SenderName = ""
	assert.ErrorIs(t, ValidateChatMessage(&m, 1800), ErrEmptySender)
}
