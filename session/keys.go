package session

const (
	// CurrentAuthKey holds the ephemeral record of the tab.
	CurrentAuthKey = "currentAuth"
	// TabIDKey caches the tab identifier in the ephemeral tier.
	TabIDKey = "tabId"
	// ActiveAccountsKey holds the durable registry shared by all tabs.
	ActiveAccountsKey = "activeAccounts"

	durableAuthPrefix = "auth_"
)

// DurableAuthKey is the durable record key owned by tabID.
func DurableAuthKey(tabID string) string {
	return durableAuthPrefix + tabID
}
