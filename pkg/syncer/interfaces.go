package syncer

import (
	"context"

	"sgsync/pkg/models"
)

// SteamGiftsClient defines the remote operations the synchronizer needs
type SteamGiftsClient interface {
	CheckSession(ctx context.Context) error
	Me(ctx context.Context) (string, error)
	FetchGiveaways(ctx context.Context, username string, won bool) ([]models.Giveaway, error)
	FetchEntriesPage(ctx context.Context, g models.Giveaway, page int) ([]string, error)
}
