package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bitunix-trend-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(trades int) *models.BotState {
	state := models.NewBotState("bot-1", "BTCUSDT")
	state.TotalRealizedPnL = -12.345
	for i := 0; i < trades; i++ {
		state.OpenTrades = append(state.OpenTrades, models.Trade{
			Qty:         0.5 + float64(i),
			FillPrice:   100.0 + float64(i),
			Fee:         0.03,
			TargetPrice: 102.0 + float64(i),
			OrderID:     fmt.Sprintf("ord-%d", i),
			CreatedAt:   time.Now().UTC(),
		})
	}
	return state
}

func backends(t *testing.T) map[string]StateRepository {
	t.Helper()
	dir := t.TempDir()

	fileRepo, err := NewFileRepository(filepath.Join(dir, "trades", "bot-1_trades.json"))
	require.NoError(t, err)

	badgerRepo, err := NewBadgerRepository(filepath.Join(dir, "badger"), "bot-1")
	require.NoError(t, err)

	t.Cleanup(func() {
		fileRepo.Close()
		badgerRepo.Close()
	})
	return map[string]StateRepository{"file": fileRepo, "badger": badgerRepo}
}

func TestStateRepository_MissingStateIsNil(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			state, err := repo.LoadState()
			assert.NoError(t, err)
			assert.Nil(t, state)
		})
	}
}

func TestStateRepository_RoundTrip(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, trades := range []int{0, 1, 3} {
				saved := sampleState(trades)
				require.NoError(t, repo.SaveState(saved))

				loaded, err := repo.LoadState()
				require.NoError(t, err)
				require.NotNil(t, loaded)

				assert.Equal(t, saved.BotID, loaded.BotID)
				assert.Equal(t, saved.Symbol, loaded.Symbol)
				// 浮点字段必须逐比特还原，不允许有损序列化
				assert.Equal(t, saved.TotalRealizedPnL, loaded.TotalRealizedPnL)
				require.Len(t, loaded.OpenTrades, trades)
				for i, trade := range loaded.OpenTrades {
					want := saved.OpenTrades[i]
					assert.Equal(t, want.Qty, trade.Qty)
					assert.Equal(t, want.FillPrice, trade.FillPrice)
					assert.Equal(t, want.Fee, trade.Fee)
					assert.Equal(t, want.TargetPrice, trade.TargetPrice)
					assert.Equal(t, want.OrderID, trade.OrderID)
					assert.True(t, want.CreatedAt.Equal(trade.CreatedAt),
						"created_at: want %v, got %v", want.CreatedAt, trade.CreatedAt)
				}
				// 保存时写入时间戳
				assert.False(t, loaded.LastUpdated.IsZero())
			}
		})
	}
}

func TestStateRepository_SaveDoesNotMutateInput(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			state := sampleState(1)
			before := state.LastUpdated
			require.NoError(t, repo.SaveState(state))
			assert.Equal(t, before, state.LastUpdated)
		})
	}
}

func TestFileRepository_EmptyFileIsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	state, err := repo.LoadState()
	assert.NoError(t, err)
	assert.Nil(t, state)
}

func TestFileRepository_NoPartialFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot_trades.json")

	repo, err := NewFileRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.SaveState(sampleState(2)))

	// 写入通过临时文件+rename 完成，目录里只能有最终文件
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bot_trades.json", entries[0].Name())
}
