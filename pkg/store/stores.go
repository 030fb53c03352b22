package store

import "github.com/jmoiron/sqlx"

// Stores bundles every store over the two databases.
type Stores struct {
	Members    MemberStore
	Messages   MessageStore
	Diary      DiaryStore
	SystemInfo SystemInfoStore
	Settings   SettingStore
	Tokens     TokenStore
}

// NewStores wires all stores to their backing databases.
func NewStores(systemDB, appDB *sqlx.DB) Stores {
	return Stores{
		Members:    NewMembers(systemDB),
		Messages:   NewMessages(systemDB),
		Diary:      NewDiary(systemDB),
		SystemInfo: NewSystemInfo(systemDB),
		Settings:   NewSettings(appDB),
		Tokens:     NewTokens(appDB),
	}
}
