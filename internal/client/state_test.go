package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskboard/internal/model"
)

func sampleState() *BoardState {
	st := &BoardState{Columns: []Column{
		{List: model.List{ID: 1}, Cards: []model.Card{{ID: 10}, {ID: 11}, {ID: 12}}},
		{List: model.List{ID: 2}, Cards: []model.Card{{ID: 20}}},
		{List: model.List{ID: 3}},
		{List: model.List{ID: 4}},
	}}
	for i := range st.Columns {
		st.Columns[i].renumber()
	}
	return st
}

func TestMoveCardRenumbers(t *testing.T) {
	st := sampleState()
	from, err := st.moveCard(12, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), from)
	assert.Equal(t, []uint64{12, 10, 11}, st.CardOrder(1))
	for i, c := range st.Columns[0].Cards {
		assert.Equal(t, i, c.Position)
	}

	_, err = st.moveCard(10, 2, 99)
	require.NoError(t, err)
	assert.Equal(t, []uint64{12, 11}, st.CardOrder(1))
	assert.Equal(t, []uint64{20, 10}, st.CardOrder(2))
	assert.Equal(t, uint64(2), st.Columns[1].Cards[1].ListID)
	assert.Equal(t, []uint64{20, 10}, st.Columns[1].List.Cards)
}

func TestMoveColumnKeepsRelativeOrder(t *testing.T) {
	st := sampleState()
	from, err := st.moveColumn(3, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, from)
	var ids []uint64
	for i, col := range st.Columns {
		ids = append(ids, col.List.ID)
		assert.Equal(t, i, col.List.Position)
	}
	assert.Equal(t, []uint64{3, 1, 2, 4}, ids)

	_, err = st.moveColumn(3, -5)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Columns[0].List.ID)
}

func TestCloneIsDeep(t *testing.T) {
	st := sampleState()
	cp := st.Clone()
	_, err := cp.moveCard(10, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11, 12}, st.CardOrder(1))
	assert.Equal(t, []uint64{10, 11, 12}, st.Columns[0].List.Cards)
}
