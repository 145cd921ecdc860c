package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/loykin/srvctl"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	table := newTable(w)
	table.SetAutoFormatHeaders(true)
	table.SetHeader(headers)
	table.AppendBulk(rows)
	table.Render()
}

// printPairs prints a key: value table.
func printPairs(w io.Writer, pairs [][2]string) {
	table := newTable(w)
	for _, p := range pairs {
		table.Append([]string{p[0] + ":", p[1]})
	}
	table.Render()
}

func pidString(s srvctl.Server) string {
	if s.PID == nil {
		return "-"
	}
	return strconv.Itoa(*s.PID)
}

func portString(port int) string {
	if port == 0 {
		return "-"
	}
	return strconv.Itoa(port)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printServers(w io.Writer, servers []srvctl.Server) {
	rows := make([][]string, 0, len(servers))
	for _, s := range servers {
		rows = append(rows, []string{s.Name, string(s.Status), pidString(s), portString(s.Port), yesNo(s.AutoStart), s.Command})
	}
	printTable(w, []string{"Name", "Status", "PID", "Port", "Auto Start", "Command"}, rows)
}

func serverPairs(s srvctl.Server) [][2]string {
	return [][2]string{
		{"Name", s.Name},
		{"Status", string(s.Status)},
		{"PID", pidString(s)},
		{"Port", portString(s.Port)},
		{"Command", s.Command},
		{"Working Directory", s.WorkingDirectory},
		{"Description", s.Description},
		{"Auto Start", yesNo(s.AutoStart)},
	}
}

func printDetail(w io.Writer, d srvctl.Detail) {
	pairs := serverPairs(d.Server)
	pairs = append(pairs,
		[2]string{"Port In Use", yesNo(d.PortInUse)},
		[2]string{"Process Alive", yesNo(d.ProcessAlive)},
	)
	if d.StartedAt != nil {
		pairs = append(pairs,
			[2]string{"Started", d.StartedAt.Format(time.RFC3339)},
			[2]string{"Uptime", d.Uptime().String()},
		)
	}
	printPairs(w, pairs)
}

func printPorts(w io.Writer, ports []srvctl.PortUsage) {
	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		rows = append(rows, []string{p.Name, portString(p.Port), yesNo(p.InUse), string(p.Status)})
	}
	printTable(w, []string{"Name", "Port", "In Use", "Status"}, rows)
}

type resultJSON struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func resultsJSON(rs []srvctl.Result) []resultJSON {
	out := make([]resultJSON, 0, len(rs))
	for _, r := range rs {
		j := resultJSON{Name: r.Name, OK: r.Err == nil}
		if r.Err != nil {
			j.Error = r.Err.Error()
		}
		out = append(out, j)
	}
	return out
}

func printResults(w io.Writer, rs []srvctl.Result) {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		res := "ok"
		if r.Err != nil {
			res = r.Err.Error()
		}
		rows = append(rows, []string{r.Name, res})
	}
	printTable(w, []string{"Name", "Result"}, rows)
}

func summarize(action string, rs []srvctl.Result) error {
	if failed := srvctl.Failed(rs); len(failed) > 0 {
		return fmt.Errorf("%s: %d of %d servers failed", action, len(failed), len(rs))
	}
	return nil
}
