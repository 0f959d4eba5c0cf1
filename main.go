/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/taskdash/apiserver/cmd"

func main() {
	cmd.Execute()
}
