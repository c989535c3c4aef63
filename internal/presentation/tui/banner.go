package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the startup banner for the chat client.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	s1 := termenv.String("                     _           _ ").Foreground(p.Color("#34d399"))
	s2 := termenv.String("  _ __ ___  ___  ___ | |_   _____| |").Foreground(p.Color("#2dd4bf"))
	s3 := termenv.String(" | '__/ _ \\/ __|/ _ \\| \\ \\ / / _` |").Foreground(p.Color("#22d3ee"))
	s4 := termenv.String(" | | |  __/\\__ \\ (_) | |\\ V / (_| |").Foreground(p.Color("#38bdf8"))
	s5 := termenv.String(" |_|  \\___||___/\\___/|_| \\_/ \\__,_|").Foreground(p.Color("#60a5fa"))
	ver := termenv.String(fmt.Sprintf("  support desk  v%s", version)).Faint()

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(ver)
	fmt.Println()
}
