package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"selectCard","data":{"roomCode":"ABC123","cardId":7}}`))
	require.NoError(t, err)
	sel, ok := cmd.(*SelectCard)
	require.True(t, ok, "got %T", cmd)
	assert.Equal(t, "ABC123", sel.RoomCode)
	assert.EqualValues(t, 7, sel.CardID)

	cmd, err = DecodeCommand([]byte(`{"type":"completeTrade","data":{"sessionId":"s1","myCardId":1,"opponentCardId":2}}`))
	require.NoError(t, err)
	complete := cmd.(*CompleteTrade)
	require.NotNil(t, complete.MyCardID)
	assert.EqualValues(t, 2, *complete.OpponentCardID)

	_, err = DecodeCommand([]byte(`{"type":"dance"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = DecodeCommand([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedCommand)

	_, err = DecodeCommand([]byte(`{"type":"joinRoom","data":{"roomCode":42}}`))
	assert.ErrorIs(t, err, ErrMalformedCommand)
}

func TestEncodeEvent(t *testing.T) {
	raw, err := EncodeEvent(RoomUsers{RoomCode: "ABC123", Users: []Occupant{{UserID: 1, Username: "ash"}}})
	require.NoError(t, err)

	var env struct {
		Type string    `json:"type"`
		Data RoomUsers `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "roomUsers", env.Type)
	assert.Equal(t, "ash", env.Data.Users[0].Username)
}
