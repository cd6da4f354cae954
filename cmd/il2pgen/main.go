package main

import (
	il2prx "github.com/silversat/il2prx/src"
)

func main() {
	il2prx.Il2pgenMain()
}
