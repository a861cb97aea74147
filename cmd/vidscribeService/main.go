package main

import (
	"bitbucket.org/airenas/vidscribe/internal/app/api"
	"github.com/labstack/gommon/color"
)

func main() {
	printBanner()
	api.Execute()
}

var (
	version string
)

func printBanner() {
	banner := `
       _     __               _ __       
 _  __(_)___/ /_____________(_) /_  ___ 
| |/ / / __  / ___/ ___/ ___/ / __ \/ _ \
| ' / / /_/ (__  ) /__/ /  / / /_/ /  __/
|__/_/\__,_/____/\___/_/  /_/_.___/\___/  v: %s
%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("bitbucket.org/airenas/vidscribe"))
}
