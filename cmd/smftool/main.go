// smftool is a CLI utility for inspecting SMF model files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/smf-go/internal/texture"
	"github.com/Faultbox/smf-go/pkg/smf"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "rig":
		cmdRig(args)
	case "anim", "animations":
		cmdAnim(args)
	case "textures", "tex":
		cmdTextures(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`smftool - SMF model file utility

Usage:
  smftool <command> [options]

Commands:
  info <file.smf>              Show file summary
  rig <file.smf>               Print the rig node tree
  anim <file.smf>              List animations and frame counts
  textures <file.smf> [opts]   Extract embedded textures

Examples:
  smftool info character.smf
  smftool rig character.smf
  smftool textures character.smf -format png -out ./textures`)
}

func openFile(path string) *smf.File {
	f, err := smf.ParseFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// chunkNames indexes the offset table per version.
var chunkNamesV7 = []string{"textures", "materials", "models", "scene nodes", "collision", "rig", "animations", "selections"}
var chunkNamesModern = []string{"textures", "models", "rig", "animations"}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: smftool info <file.smf>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ver, offsets, err := smf.OffsetTable(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	f, err := smf.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	totalVerts := 0
	for i := range f.Models {
		totalVerts += len(f.Models[i].Vertices)
	}

	fmt.Printf("File:       %s (%d bytes)\n", args[0], len(data))
	fmt.Printf("Version:    %s\n", ver)
	fmt.Printf("Models:     %d (%d vertices, %d triangles)\n", len(f.Models), totalVerts, totalVerts/3)
	fmt.Printf("Textures:   %d\n", len(f.Textures))
	fmt.Printf("Rig nodes:  %d\n", len(f.Nodes))
	fmt.Printf("Animations: %d\n", len(f.Animations))
	if f.Version == smf.V7 {
		fmt.Printf("Materials:  %d\n", len(f.Materials))
		fmt.Printf("Center:     [%g %g %g]  Size: %g\n", f.Center[0], f.Center[1], f.Center[2], f.Size)
	}
	fmt.Println()

	names := chunkNamesModern
	if ver == smf.V7 {
		names = chunkNamesV7
	}
	fmt.Println("Chunk offsets:")
	for i, off := range offsets {
		fmt.Printf("  %-12s 0x%08x\n", names[i], off)
	}
	fmt.Println()

	for i := range f.Models {
		m := &f.Models[i]
		vis := "visible"
		if !m.Visible {
			vis = "hidden"
		}
		fmt.Printf("  model %d: %5d verts  material=%q texture=%q  %s\n",
			i, len(m.Vertices), m.MaterialName, m.TextureName, vis)
	}
}

func cmdRig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: smftool rig <file.smf>")
		os.Exit(1)
	}

	f := openFile(args[0])
	if len(f.Nodes) == 0 {
		fmt.Println("(no rig)")
		return
	}

	// Depth per node for tree indentation. Parents always precede children.
	depth := make([]int, len(f.Nodes))
	for i := range f.Nodes {
		p := int(f.Nodes[i].Parent)
		if p < i {
			depth[i] = depth[p] + 1
		}
	}

	// Connected nodes carry the skin indices, in node order.
	skinIndex := 0
	for i := range f.Nodes {
		n := &f.Nodes[i]
		tr := n.Transform.Translation()

		var flags []string
		if n.Connected {
			flags = append(flags, fmt.Sprintf("skin=%d", skinIndex))
			skinIndex++
		}
		if n.Locked {
			flags = append(flags, "locked")
		}
		if n.IKAxis != [3]float32{} {
			flags = append(flags, fmt.Sprintf("ik=[%g %g %g]", n.IKAxis[0], n.IKAxis[1], n.IKAxis[2]))
		}

		fmt.Printf("%s%3d <- %3d  pos=[%7.3f %7.3f %7.3f]  %s\n",
			strings.Repeat("  ", depth[i]), i, n.Parent, tr[0], tr[1], tr[2],
			strings.Join(flags, " "))
	}
}

func cmdAnim(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: smftool anim <file.smf>")
		os.Exit(1)
	}

	f := openFile(args[0])
	if len(f.Animations) == 0 {
		fmt.Println("(no animations)")
		return
	}

	for i := range f.Animations {
		a := &f.Animations[i]
		loop := ""
		if a.Loop {
			loop = " loop"
		}
		fmt.Printf("%-24s %4d frames  %8.1f ms%s\n", a.Name, len(a.Frames), a.PlayTimeMS, loop)
	}
}

func cmdTextures(args []string) {
	fs := flag.NewFlagSet("textures", flag.ExitOnError)
	format := fs.String("format", "webp", "Output format (webp or png)")
	outDir := fs.String("out", ".", "Output directory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: smftool textures <file.smf> [-format webp|png] [-out dir]")
		os.Exit(1)
	}

	f := openFile(fs.Arg(0))
	if len(f.Textures) == 0 {
		fmt.Println("(no embedded textures)")
		return
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	extracted := 0
	for i := range f.Textures {
		t := &f.Textures[i]
		img, err := texture.ToImage(t)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", t.Name, err)
			continue
		}

		outputPath := filepath.Join(*outDir, t.Name+"."+*format)
		if err := texture.Write(outputPath, img); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Extracted: %s (%dx%d)\n", outputPath, t.Width, t.Height)
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d textures\n", extracted)
}
