package engine

// Direction is one of the four slide directions
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Up    Direction = "up"
	Down  Direction = "down"

	// Validation constants
	MinBoardSize           = 1
	MaxBoardSize           = 16
	DefaultBoardSize       = 4
	DefaultInitialTiles    = 2
	DefaultFourProbability = 0.1
	DefaultTargetTile      = 2048
	MaxBulkMoves           = 50
)

// Directions lists every direction in a stable order
var Directions = []Direction{Up, Down, Left, Right}

// Grid is a square board of tile values, 0 meaning empty
type Grid [][]int

// Position represents row/column coordinates on the board
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Tile is a value placed at a position
type Tile struct {
	Position
	Value int `json:"value"`
}

// GameConfig describes a board variant
type GameConfig struct {
	Name            string  `json:"name" yaml:"name"`
	Description     string  `json:"description" yaml:"description"`
	BoardSize       int     `json:"board_size" yaml:"board_size"`
	FourProbability float64 `json:"four_probability" yaml:"four_probability"`
	InitialTiles    int     `json:"initial_tiles" yaml:"initial_tiles"`
	TargetTile      int     `json:"target_tile,omitempty" yaml:"target_tile,omitempty"`
}

// GameState is a read-only snapshot of a game for rendering and transport
type GameState struct {
	Board         Grid   `json:"board"`
	BoardSize     int    `json:"board_size"`
	Score         int    `json:"score"`
	MaxTile       int    `json:"max_tile"`
	EmptyCells    int    `json:"empty_cells"`
	GameOver      bool   `json:"game_over"`
	TargetTile    int    `json:"target_tile,omitempty"`
	TargetReached bool   `json:"target_reached"`
	LastSpawn     *Tile  `json:"last_spawn,omitempty"`
	ConfigName    string `json:"config_name"`
	Message       string `json:"message"`
	TotalMoves    int    `json:"total_moves"`
	AcceptedMoves int    `json:"accepted_moves"`

	// Computed helper views
	PossibleMoves []Direction `json:"possible_moves,omitempty"`
	BoardHash     string      `json:"board_hash,omitempty"`
}

// MoveHistoryEntry records a single attempted move
type MoveHistoryEntry struct {
	Direction   Direction `json:"direction"`
	Changed     bool      `json:"changed"`
	ScoreGained int       `json:"score_gained"`
	ScoreAfter  int       `json:"score_after"`
	Merges      int       `json:"merges"`
	Spawned     *Tile     `json:"spawned,omitempty"`
	Timestamp   int64     `json:"timestamp"`
	MoveNumber  int       `json:"move_number"`
}
