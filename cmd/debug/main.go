package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sprinksync/irrigation-controller/db"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command string
	var scheduleID, limit, maxConcurrent int
	var enabled bool
	flag.StringVar(&dbPath, "db", "data/irrigation.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: set-max-concurrent, toggle-schedule, show-history, list-zones")
	flag.IntVar(&scheduleID, "schedule", 0, "Schedule ID for toggle-schedule")
	flag.BoolVar(&enabled, "enabled", true, "Enabled flag for toggle-schedule")
	flag.IntVar(&maxConcurrent, "max", 0, "Value for set-max-concurrent")
	flag.IntVar(&limit, "limit", 20, "Row limit for show-history")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of irrigation-debug:")
		fmt.Println("  -db string\tPath to the SQLite database file (default 'data/irrigation.db')")
		fmt.Println("  -cmd string\tCommand to run: set-max-concurrent, toggle-schedule, show-history, list-zones")
		fmt.Println("  -schedule int\tSchedule ID for toggle-schedule")
		fmt.Println("  -enabled bool\tEnabled flag for toggle-schedule")
		fmt.Println("  -max int\tValue for set-max-concurrent")
		fmt.Println("  -limit int\tRow limit for show-history")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	conn, err := db.Open(dbPath)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	switch command {
	case "set-max-concurrent":
		if maxConcurrent < 1 {
			fmt.Println("Error: -max must be at least 1")
			os.Exit(1)
		}
		limits, err := db.GetSafetyLimits(conn)
		if err == nil {
			limits.MaxConcurrentZones = maxConcurrent
			err = db.UpdateSafetyLimits(conn, limits)
		}
		exitOn(command, err)
	case "toggle-schedule":
		if scheduleID == 0 {
			fmt.Println("Error: schedule ID is required")
			os.Exit(1)
		}
		exitOn(command, db.SetScheduleEnabled(conn, scheduleID, enabled))
	case "show-history":
		records, err := db.GetRecentHistory(conn, limit)
		exitOn(command, err)
		for _, r := range records {
			end := "running"
			if !r.EndTime.IsZero() {
				end = fmt.Sprintf("%s (%dm)", r.EndTime.Format("2006-01-02 15:04"), r.Duration)
			}
			fmt.Printf("#%d zone=%d start=%s end=%s trigger=%s\n",
				r.ID, r.ZoneID, r.StartTime.Format("2006-01-02 15:04"), end, r.Trigger)
		}
		return
	case "list-zones":
		zones, err := db.GetAllZones(conn)
		exitOn(command, err)
		for _, z := range zones {
			fmt.Printf("#%d %-20s pin=%d default=%dm total=%dm\n",
				z.ID, z.Name, z.Pin.Number, z.DefaultDuration, z.TotalRuntime)
		}
		return
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	fmt.Printf("Command %s completed successfully\n", command)
}

func exitOn(command string, err error) {
	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
}
