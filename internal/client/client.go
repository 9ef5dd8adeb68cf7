// Package client implements the pkctl operator tool built on the daemon's
// command channel.
package client

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"PowerKeeper/internal/api"
	"PowerKeeper/internal/util"
)

// ChangeState forces the named machines into a state and prints the
// per-machine outcome reported by the daemon.
func ChangeState(state string, machines []string) util.PowerCmdError {
	results, err := commandClient().ChangeState(state, machines)
	if err != nil {
		fmt.Printf("Failed to change machine state: %v\n", err)
		return util.ErrorNetwork
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %s\n", name, results[name])
	}
	return util.ErrorSuccess
}

// ShowStatus prints the daemon's view of the machines as a table, filtered to
// the given names when any are passed.
func ShowStatus(machines []string) util.PowerCmdError {
	rows, err := commandClient().Status()
	if err != nil {
		fmt.Printf("Failed to query machine status: %v\n", err)
		return util.ErrorNetwork
	}

	if len(machines) > 0 {
		wanted := make(map[string]bool, len(machines))
		for _, name := range machines {
			wanted[name] = true
		}
		filtered := rows[:0]
		for _, row := range rows {
			if wanted[row.Name] {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	table := tablewriter.NewWriter(os.Stdout)
	util.SetBorderlessTable(table)
	if !FlagNoHeader {
		table.SetHeader([]string{"Name", "State", "Slots", "Timer", "IdleSeconds"})
	}
	for _, row := range rows {
		timer := "-"
		if row.Timer != nil {
			timer = strconv.FormatInt(*row.Timer, 10)
		}
		table.Append([]string{
			row.Name,
			row.State,
			strconv.Itoa(row.Slots),
			timer,
			strconv.FormatInt(row.SinceLastActive, 10),
		})
	}
	table.Render()
	return util.ErrorSuccess
}

// commandClient builds a client for the daemon's command channel. Only the
// listen address is needed here, so the configuration is read leniently; a
// missing or broken file falls back to the defaults.
func commandClient() *api.Client {
	addr := util.DefaultCommandListenAddr
	port := util.DefaultCommandListenPort

	var config struct {
		Daemon struct {
			ListenAddr string `yaml:"ListenAddr"`
			ListenPort string `yaml:"ListenPort"`
		} `yaml:"Daemon"`
	}
	if data, err := os.ReadFile(FlagConfigFilePath); err == nil {
		if yaml.Unmarshal(data, &config) == nil {
			if config.Daemon.ListenAddr != "" {
				addr = config.Daemon.ListenAddr
			}
			if config.Daemon.ListenPort != "" {
				port = config.Daemon.ListenPort
			}
		}
	}
	return api.NewClient(addr, port)
}
