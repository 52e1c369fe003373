package main

import "FaceStabilityServer/cmd"

func main() {
	cmd.Execute()
}
