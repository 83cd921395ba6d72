package main

import (
	"github.com/wricardo/snake-arcade/game/engine"
)

// Strategy picks the next direction for a snake. It follows the shortest
// path to the food when one exists and otherwise moves toward the largest
// open area.
type Strategy struct {
	visitedCells map[engine.Cell]int
}

// NewStrategy creates a strategy with empty visit counts
func NewStrategy() *Strategy {
	return &Strategy{visitedCells: make(map[engine.Cell]int)}
}

// Reset clears the visit counts before a new game
func (s *Strategy) Reset() {
	s.visitedCells = make(map[engine.Cell]int)
}

// NextMove returns the direction to request, or "" when every move is fatal
func (s *Strategy) NextMove(state *engine.GameState) string {
	if state == nil || len(state.Snake) == 0 || state.IsOver() {
		return ""
	}
	s.visitedCells[state.Head()]++

	safe := engine.SafeDirections(state)
	if len(safe) == 0 {
		return ""
	}

	if path := s.BFS(state.Head(), state.Food, state); len(path) > 0 {
		next := state.Head().Add(engine.Direction(path[0]))
		// Only chase food while the move leaves room for the whole body
		if s.openArea(state, next) >= state.Length() {
			return path[0]
		}
	}

	return s.exploreMove(state, safe)
}

// exploreMove picks the safe move with the largest reachable area, breaking
// ties by the least visited cell
func (s *Strategy) exploreMove(state *engine.GameState, safe []string) string {
	best := ""
	bestArea, bestVisits := -1, 0
	for _, dir := range safe {
		next := state.Head().Add(engine.Direction(dir))
		area := s.openArea(state, next)
		visits := s.visitedCells[next]
		if area > bestArea || (area == bestArea && visits < bestVisits) {
			best, bestArea, bestVisits = dir, area, visits
		}
	}
	return best
}

// BFS returns the shortest list of directions from start to goal through
// cells the snake can enter
func (s *Strategy) BFS(start, goal engine.Cell, state *engine.GameState) []string {
	if start == goal {
		return []string{}
	}

	type QueueItem struct {
		pos  engine.Cell
		path []string
	}

	blocked := s.blockedCells(state)
	queue := []QueueItem{{pos: start, path: []string{}}}
	visited := map[engine.Cell]bool{start: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dir := range engine.Directions {
			if current.pos == start && engine.IsOpposite(state.Direction, dir) {
				continue
			}
			newPos := current.pos.Add(dir)
			if visited[newPos] || !newPos.InBounds(state.GridSize) || blocked[newPos] {
				continue
			}

			newPath := append([]string{}, current.path...)
			newPath = append(newPath, string(dir))
			if newPos == goal {
				return newPath
			}

			visited[newPos] = true
			queue = append(queue, QueueItem{pos: newPos, path: newPath})
		}
	}

	return nil
}

// openArea counts the cells reachable from start, start included
func (s *Strategy) openArea(state *engine.GameState, start engine.Cell) int {
	blocked := s.blockedCells(state)
	if !start.InBounds(state.GridSize) || blocked[start] {
		return 0
	}

	seen := map[engine.Cell]bool{start: true}
	stack := []engine.Cell{start}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dir := range engine.Directions {
			n := c.Add(dir)
			if seen[n] || !n.InBounds(state.GridSize) || blocked[n] {
				continue
			}
			seen[n] = true
			stack = append(stack, n)
		}
	}
	return len(seen)
}

// blockedCells is the body without the tail, which moves away on the next tick
func (s *Strategy) blockedCells(state *engine.GameState) map[engine.Cell]bool {
	blocked := make(map[engine.Cell]bool, len(state.Snake))
	for _, c := range state.Snake[:len(state.Snake)-1] {
		blocked[c] = true
	}
	return blocked
}
