package main

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/arlstone/orrery/internal/engine"
)

func printAdvanceReport(sim *engine.Simulation, name string, from uint64, alive bool) {
	days := sim.Day - from
	fmt.Printf("%s: advanced %s days, now %s\n",
		name, humanize.Comma(int64(days)), engine.SimDate(sim.Day))
	fmt.Printf("  population: %s across %d living worlds (%d dead)\n",
		humanize.Comma(int64(sim.Stats.TotalPopulation)),
		sim.Stats.AlivePlanets, sim.Stats.DeadPlanets)
	fmt.Printf("  score: %s\n", humanize.SIWithDigits(sim.Score, 1, ""))
	fmt.Printf("  active transfers: %d\n", sim.Stats.ActiveTransfers)

	if !alive {
		fmt.Println("  every world has gone quiet.")
	}

	recent := sim.RecentEvents(10)
	if len(recent) == 0 {
		return
	}
	fmt.Println("\nRecent events:")
	for _, e := range recent {
		fmt.Printf("  [%s] %s\n", engine.SimDate(e.Day), e.Description)
	}
}
