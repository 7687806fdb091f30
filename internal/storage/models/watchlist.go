// internal/storage/models/watchlist.go
package models

type WatchlistItem struct {
	BaseModel
	WalletAddress string `gorm:"uniqueIndex:idx_watch_wallet_token;not null;type:varchar(64)"`
	TokenAddress  string `gorm:"uniqueIndex:idx_watch_wallet_token;not null;type:varchar(64)"`
}
