package game

// Variables holds the numeric values a player accumulates during a session,
// keyed by variable ID. Missing keys read as 0.
type Variables map[string]float64

// Get returns the value for id, or 0 when it was never set.
func (v Variables) Get(id string) float64 {
	return v[id]
}

// Clone returns an independent copy of v.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Document is a finalized game as exported by the editor. The engine treats
// it as read-only; sessions work on their own copy of the scenes.
type Document struct {
	StartScene string            `yaml:"startScene" json:"startScene"`
	Scenes     map[string]*Scene `yaml:"scenes" json:"scenes"`
	SceneOrder []string          `yaml:"sceneOrder" json:"sceneOrder"`
	Variables  []VariableDef     `yaml:"variables" json:"variables"`

	Title              string `yaml:"gameTitle" json:"gameTitle"`
	SplashDescription  string `yaml:"gameSplashDescription" json:"gameSplashDescription"`
	SplashButtonText   string `yaml:"gameSplashButtonText" json:"gameSplashButtonText"`
	ContinueButtonText string `yaml:"gameContinueButtonText" json:"gameContinueButtonText"`
	RestartButtonText  string `yaml:"gameRestartButtonText" json:"gameRestartButtonText"`
	Theme              string `yaml:"gameTheme" json:"gameTheme"` // "dark" | "light"

	EnableChances             bool       `yaml:"gameEnableChances" json:"gameEnableChances"`
	MaxChances                int        `yaml:"gameMaxChances" json:"gameMaxChances"`
	ChanceIcon                ChanceIcon `yaml:"gameChanceIcon" json:"gameChanceIcon"`
	ChanceIconColor           string     `yaml:"gameChanceIconColor" json:"gameChanceIconColor"`
	ChanceReturnButtonText    string     `yaml:"gameChanceReturnButtonText" json:"gameChanceReturnButtonText"`
	WonButtonText             string     `yaml:"gameWonButtonText" json:"gameWonButtonText"`
	LostLastChanceButtonText  string     `yaml:"gameLostLastChanceButtonText" json:"gameLostLastChanceButtonText"`
	PositiveEndingImage       string     `yaml:"positiveEndingImage" json:"positiveEndingImage"`
	PositiveEndingAlignment   string     `yaml:"positiveEndingContentAlignment" json:"positiveEndingContentAlignment"`
	PositiveEndingDescription string     `yaml:"positiveEndingDescription" json:"positiveEndingDescription"`
	NegativeEndingImage       string     `yaml:"negativeEndingImage" json:"negativeEndingImage"`
	NegativeEndingAlignment   string     `yaml:"negativeEndingContentAlignment" json:"negativeEndingContentAlignment"`
	NegativeEndingDescription string     `yaml:"negativeEndingDescription" json:"negativeEndingDescription"`
}

// Scene is a node in the narrative graph.
type Scene struct {
	ID                    string        `yaml:"id" json:"id"`
	Name                  string        `yaml:"name" json:"name"`
	Description           string        `yaml:"description" json:"description"`
	Image                 string        `yaml:"image" json:"image"`
	Choices               []Choice      `yaml:"choices" json:"choices"`
	IsEndingScene         bool          `yaml:"isEndingScene" json:"isEndingScene"`
	RemovesChanceOnEntry  bool          `yaml:"removesChanceOnEntry" json:"removesChanceOnEntry"`
	RestoresChanceOnEntry bool          `yaml:"restoresChanceOnEntry" json:"restoresChanceOnEntry"`
	Scripts               []SceneScript `yaml:"scripts" json:"scripts"`
	MapX                  float64       `yaml:"mapX" json:"mapX"`
	MapY                  float64       `yaml:"mapY" json:"mapY"`
}

// Choice is an edge from one scene to another, optionally gated by a
// condition and optionally mutating variables.
type Choice struct {
	ID             string         `yaml:"id" json:"id"`
	Text           string         `yaml:"text" json:"text"`
	GoToScene      string         `yaml:"goToScene" json:"goToScene"`
	SoundEffect    string         `yaml:"soundEffect" json:"soundEffect"`
	TransitionType TransitionType `yaml:"transitionType" json:"transitionType"`
	ReqCondition   *Condition     `yaml:"reqCondition" json:"reqCondition"`
	Effects        []Effect       `yaml:"effects" json:"effects"`
}

// SceneScript redirects the player to another scene on entry when its
// trigger condition holds. A script without a condition never fires.
type SceneScript struct {
	TriggerCondition *Condition `yaml:"triggerCondition" json:"triggerCondition"`
	GoToScene        string     `yaml:"goToScene" json:"goToScene"`
}

// VariableDef declares a tracked numeric variable.
type VariableDef struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	InitialValue float64 `yaml:"initialValue" json:"initialValue"`
	Visible      *bool   `yaml:"visible" json:"visible"`
	Color        string  `yaml:"color" json:"color"`
	IsInverse    bool    `yaml:"isInverse" json:"isInverse"`
}

// Shown reports whether the variable should appear in the player HUD.
// Variables are visible unless explicitly hidden.
func (v VariableDef) Shown() bool {
	return v.Visible == nil || *v.Visible
}

// Condition tests a variable against a constant.
type Condition struct {
	VariableID string   `yaml:"variableId" json:"variableId"`
	Operator   Operator `yaml:"operator" json:"operator"`
	Value      float64  `yaml:"value" json:"value"`
}

// Effect mutates a variable when a choice is taken.
type Effect struct {
	VariableID string    `yaml:"variableId" json:"variableId"`
	Operation  Operation `yaml:"operation" json:"operation"`
	Value      float64   `yaml:"value" json:"value"`
}

// Operator is a numeric comparison used by conditions.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual, OpNotEqual:
		return true
	}
	return false
}

// Operation is the kind of mutation an effect performs.
type Operation string

const (
	OpAdd      Operation = "add"
	OpSubtract Operation = "subtract"
	OpSet      Operation = "set"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OpAdd, OpSubtract, OpSet:
		return true
	}
	return false
}

// TransitionType selects the visual hand-off between two scenes.
type TransitionType string

const (
	TransitionNone      TransitionType = "none"
	TransitionFade      TransitionType = "fade"
	TransitionWipeDown  TransitionType = "wipe-down"
	TransitionWipeUp    TransitionType = "wipe-up"
	TransitionWipeLeft  TransitionType = "wipe-left"
	TransitionWipeRight TransitionType = "wipe-right"
)

// Valid reports whether t is a known transition. The empty value means none.
func (t TransitionType) Valid() bool {
	switch t {
	case "", TransitionNone, TransitionFade, TransitionWipeDown, TransitionWipeUp, TransitionWipeLeft, TransitionWipeRight:
		return true
	}
	return false
}

// ChanceIcon is the glyph used to draw chance slots.
type ChanceIcon string

const (
	IconHeart  ChanceIcon = "heart"
	IconCircle ChanceIcon = "circle"
	IconCross  ChanceIcon = "cross"
)

// Valid reports whether i is a known icon. The empty value means heart.
func (i ChanceIcon) Valid() bool {
	switch i {
	case "", IconHeart, IconCircle, IconCross:
		return true
	}
	return false
}

// EndingKind distinguishes the two terminal screens.
type EndingKind string

const (
	EndingPositive EndingKind = "positive"
	EndingNegative EndingKind = "negative"
)
