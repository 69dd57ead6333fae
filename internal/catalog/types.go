package catalog

// Static reference data describing raid instances and their loot tables.
// The core stores item and instance ids on sheets but never validates
// them against this catalog; it exists for clients to browse.

// DropsFrom records which boss an item drops from and how often.
type DropsFrom struct {
	NpcID  int     `json:"npcId" yaml:"npc_id"`
	BossID int     `json:"bossId" yaml:"boss_id"`
	Chance float64 `json:"chance" yaml:"chance"`
}

// Item is one lootable item within an instance.
type Item struct {
	ID        int         `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Icon      string      `json:"icon" yaml:"icon"`
	Tooltip   string      `json:"tooltip" yaml:"tooltip"`
	Quality   int         `json:"quality" yaml:"quality"`
	Slots     []string    `json:"slots" yaml:"slots"`
	Types     []string    `json:"types" yaml:"types"`
	Classes   []string    `json:"classes" yaml:"classes"`
	DropsFrom []DropsFrom `json:"dropsFrom" yaml:"drops_from"`
}

// Boss is a named encounter within an instance.
type Boss struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Npc maps a lootable NPC to its boss encounter.
type Npc struct {
	ID     int    `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	BossID int    `json:"bossId" yaml:"boss_id"`
}

// Instance is one raid instance with its full loot table.
type Instance struct {
	ID        int    `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Shortname string `json:"shortname" yaml:"shortname"`
	Items     []Item `json:"items" yaml:"items"`
	Bosses    []Boss `json:"bosses" yaml:"bosses"`
	Npcs      []Npc  `json:"npcs" yaml:"npcs"`
}
