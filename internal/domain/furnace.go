package domain

import "fmt"

// FormatFurnaceLevel renders a raw furnace level the way the game client
// displays it: plain numbers through 30, "30-1".."30-4" for 31..34, then
// Fire Crystal tiers ("FC 1", "FC 1-1", ...) in blocks of five from 35 up.
func FormatFurnaceLevel(level int) string {
	if level <= 30 {
		if level < 0 {
			level = 0
		}
		return fmt.Sprintf("%d", level)
	}
	if level <= 34 {
		return fmt.Sprintf("30-%d", level-30)
	}
	adjusted := level - 35
	tier := adjusted/5 + 1
	sub := adjusted % 5
	if sub == 0 {
		return fmt.Sprintf("FC %d", tier)
	}
	return fmt.Sprintf("FC %d-%d", tier, sub)
}
