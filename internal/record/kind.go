package record

import "sort"

// Event names recorded by the capture layer.
const (
	BlockBreak   = "block-break"
	BlockPlace   = "block-place"
	BlockBurn    = "block-burn"
	BlockExplode = "block-explode"
	BlockFade    = "block-fade"
	BlockForm    = "block-form"
	LiquidFlow   = "liquid-flow"
	EntityKill   = "entity-kill"
	ItemDrop     = "item-drop"
	ItemPickup   = "item-pickup"
	PlayerJoin   = "player-join"
	PlayerQuit   = "player-quit"
)

// Kind describes an event name and whether records of that name can be
// rolled back or restored.
type Kind struct {
	Name       string
	Actionable bool
}

var kinds = map[string]Kind{
	BlockBreak:   {Name: BlockBreak, Actionable: true},
	BlockPlace:   {Name: BlockPlace, Actionable: true},
	BlockBurn:    {Name: BlockBurn, Actionable: true},
	BlockExplode: {Name: BlockExplode, Actionable: true},
	BlockFade:    {Name: BlockFade, Actionable: true},
	BlockForm:    {Name: BlockForm, Actionable: true},
	LiquidFlow:   {Name: LiquidFlow, Actionable: true},
	EntityKill:   {Name: EntityKill, Actionable: true},
	ItemDrop:     {Name: ItemDrop, Actionable: true},
	ItemPickup:   {Name: ItemPickup},
	PlayerJoin:   {Name: PlayerJoin},
	PlayerQuit:   {Name: PlayerQuit},
}

// LookupKind returns the catalog entry for an event name.
func LookupKind(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// Kinds returns the catalog sorted by name.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
