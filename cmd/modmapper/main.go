// Command modmapper crawls the Nexus Mods catalog for a Bethesda game,
// downloads and extracts each mod's files, parses any Skyrim plugins found
// inside, and persists their worldspaces and cells to PostgreSQL.
package main

func main() {
	Execute()
}
