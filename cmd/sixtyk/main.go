// Command sixtyk はCard Game 60Kのゲームセッションサーバー。
//
//	sixtyk [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/sixtyk/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sixtyk: %v\n", err)
		os.Exit(1)
	}
}
