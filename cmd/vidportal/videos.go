package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "List the videos in the catalogue",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPREFIX\tURL")
		for _, v := range catalog {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.Id, v.Title, v.Prefix, v.Url)
		}
		w.Flush()
	},
}
