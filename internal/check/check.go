// Package check provides system diagnostics (--check mode): codec
// capabilities, the platform tool, and host sizing facts.
package check

import (
	"runtime"

	"github.com/pterm/pterm"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/backmassage/picshrink/internal/codec"
	"github.com/backmassage/picshrink/internal/display"
	"github.com/backmassage/picshrink/internal/exttool"
	"github.com/backmassage/picshrink/internal/logging"
	"github.com/backmassage/picshrink/internal/sched"
)

// allFormats in display order, excluding the Original sentinel.
var allFormats = []codec.Format{
	codec.JPEG, codec.PNG, codec.WebP, codec.AVIF,
	codec.HEIF, codec.TIFF, codec.GIF, codec.BMP,
}

// Run prints the interactive --check report. Informational only; it never
// fails the process.
func Run() {
	pterm.DefaultSection.Println("Codec capabilities")
	rows := pterm.TableData{{"Format", "Decode", "Encode"}}
	for _, f := range allFormats {
		rows = append(rows, []string{string(f), yesNo(codec.CanDecode(f)), yesNo(codec.CanEncode(f))})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	pterm.DefaultSection.Println("Platform tool")
	tool := exttool.New(logging.Nop())
	if tool.Available() {
		pterm.Success.Println("sips available; unreadable files fall back to a JPEG conversion")
	} else {
		pterm.Info.Println("no platform tool on this system; fallback chain goes straight to copy")
	}

	pterm.DefaultSection.Println("Host sizing")
	pterm.Info.Printfln("CPUs: %d", runtime.NumCPU())
	if vm, err := mem.VirtualMemory(); err == nil {
		pterm.Info.Printfln("Memory: %s available of %s",
			display.FormatBytes(int64(vm.Available)), display.FormatBytes(int64(vm.Total)))
	} else {
		pterm.Warning.Printfln("Could not read memory stats: %v", err)
	}
	pterm.Info.Printfln("Adaptive worker ceiling: %d", sched.DefaultMaxWorkers())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
