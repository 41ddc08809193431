// Package robot runs TonyPi action groups.
//
// An action group is a prerecorded servo sequence stored on the robot and
// addressed by name ("stand", "wave", "bow"). ActionRunner is the only
// capability the rest of the system needs; RPCController implements it
// against the robot's JSON-RPC server and DryRun logs instead of moving.
package robot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// Names of action groups the engine relies on.
const (
	Stand    = "stand"
	Scissors = "jiandao"
	Rock     = "shitou"
	Paper    = "bu"
	Twist    = "twist"
	Cry      = "cry"
)

// ActionRunner runs a named action group times times and returns when the
// robot reports it done.
type ActionRunner interface {
	RunAction(ctx context.Context, name string, times int) error
}

// Action is one row of the action table.
type Action struct {
	ID    string
	Name  string
	Label string // spoken name used in prompts
}

var defaultActions = []Action{
	{"0", "stand", "立正"},
	{"1", "go_forward", "前进"},
	{"2", "back_fast", "后退"},
	{"3", "left_move_fast", "左移"},
	{"4", "right_move_fast", "右移"},
	{"5", "push_ups", "俯卧撑"},
	{"6", "sit_ups", "仰卧起坐"},
	{"7", "turn_left", "左转"},
	{"8", "turn_right", "右转"},
	{"9", "wave", "挥手"},
	{"10", "bow", "鞠躬"},
	{"11", "squat", "下蹲"},
	{"12", "chest", "庆祝"},
	{"13", "left_shot_fast", "左脚踢"},
	{"14", "right_shot_fast", "右脚踢"},
	{"15", "wing_chun", "咏春"},
	{"16", "left_uppercut", "左勾拳"},
	{"17", "right_uppercut", "右勾拳"},
	{"18", "left_kick", "左侧踢"},
	{"19", "right_kick", "右侧踢"},
	{"20", "stand_up_front", "前跌倒起立"},
	{"21", "stand_up_back", "后跌倒起立"},
	{"22", "twist", "扭腰"},
	{"24", "stepping", "原地踏步"},
	{"35", "weightlifting", "举重"},
	{"39", "cry", "哭泣"},
	{"40", "dance", "跳舞"},
}

// Table maps action IDs to action groups.
type Table struct {
	byID map[string]Action
}

// DefaultTable returns the stock TonyPi action table.
func DefaultTable() *Table {
	t := &Table{byID: make(map[string]Action, len(defaultActions))}
	for _, a := range defaultActions {
		t.byID[a.ID] = a
	}
	return t
}

// NewTable returns the default table with overrides applied. An override
// maps an ID to an action group name; a new ID adds a row labelled with
// its name.
func NewTable(overrides map[string]string) (*Table, error) {
	t := DefaultTable()
	for id, name := range overrides {
		if _, err := strconv.Atoi(id); err != nil {
			return nil, fmt.Errorf("robot: action id %q is not a number", id)
		}
		if name == "" {
			return nil, fmt.Errorf("robot: action %s has no name", id)
		}
		a, ok := t.byID[id]
		if !ok || a.Name != name {
			a = Action{ID: id, Name: name, Label: name}
		}
		t.byID[id] = a
	}
	return t, nil
}

// Lookup returns the action with the given ID.
func (t *Table) Lookup(id string) (Action, bool) {
	a, ok := t.byID[id]
	return a, ok
}

// Actions returns all rows ordered by numeric ID.
func (t *Table) Actions() []Action {
	out := make([]Action, 0, len(t.byID))
	for _, a := range t.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out
}

// Len returns the number of actions.
func (t *Table) Len() int { return len(t.byID) }
