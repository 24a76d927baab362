package obj

// OpKind enumerates the closed set of script operation tags.
type OpKind string

const (
	OpInitState           OpKind = "init_state"
	OpUI                   OpKind = "ui"
	OpRandomChoice         OpKind = "random_choice"
	OpPerPlayer            OpKind = "per_player"
	OpWaitVar              OpKind = "wait_var"
	OpWaitVarAll           OpKind = "wait_var_all"
	OpTxt2Img              OpKind = "txt2img"
	OpDepth2Img            OpKind = "depth2img"
	OpSketch2Img           OpKind = "sketch2img"
	OpKeysToList           OpKind = "keys_to_list"
	OpGatherSet            OpKind = "gather_set"
	OpGatherList           OpKind = "gather_list"
	OpGatherMapByPlayer    OpKind = "gather_map_by_player"
	OpGatherImages         OpKind = "gather_images"
	OpTally                OpKind = "tally"
	OpSelect               OpKind = "select"
	OpCopy                 OpKind = "copy"
	OpDelete               OpKind = "delete"
	OpMakeMap              OpKind = "make_map"
	OpPairPlayers          OpKind = "pair_players"
	OpRemapKeys            OpKind = "remap_keys"
	OpInvertMap            OpKind = "invert_map"
	OpComposeMaps          OpKind = "compose_maps"
	OpOurPlayerID          OpKind = "our_player_id"
	OpLogMessage           OpKind = "log_message"
)

// Op is a single scripted instruction. Args are stored verbatim as authored;
// the engine expands Value-typed args lazily at execution time. A handful of
// args are structural rather than expandable (Ops for per_player, UI for ui)
// and are stored as their own typed fields.
type Op struct {
	Kind OpKind
	Args map[string]Value

	// Ops holds the sub-script for per_player; nil for every other kind.
	Ops Script

	// UI holds the sub-object for the ui op: command, param (a Value,
	// expanded like any other arg) and sendToAll.
	UI *UICommand
}

// UICommand is the ui op's structural argument.
type UICommand struct {
	Command    string
	Param      Value
	SendToAll  bool
}

// Script is an ordered, finite sequence of ops.
type Script []Op
