package nexusapi

import "fmt"

// knownGameIDs maps a Nexus Mods domain name to its numeric game id, the
// identifier stored as the game's Nexus id on its games row. Only
// the domains this crawler targets are listed; unknown domains are a
// configuration error caught at startup.
var knownGameIDs = map[string]int32{
	"skyrimspecialedition": 1704,
	"skyrim":               110,
}

// GetGameID resolves a Nexus domain name to its numeric game id.
func GetGameID(domainName string) (int32, error) {
	id, ok := knownGameIDs[domainName]
	if !ok {
		return 0, fmt.Errorf("nexusapi: unknown game domain %q", domainName)
	}
	return id, nil
}
