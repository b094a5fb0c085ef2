package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mandelmovie/mandelbrot"
	"mandelmovie/misc"
	"mandelmovie/worker"
)

type renderOptions struct {
	centerX       float64
	centerY       float64
	escapeColor   string
	height        int
	logLevel      string
	maxIterations int
	output        string
	palette       string
	scale         float64
	width         int
	workers       int
}

func newRenderCommand() *cobra.Command {
	opts := renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a single Mandelbrot image",
		Example: `  mandelmovie render -x -0.5 -y -0.5 -s 0.2
  mandelmovie render -x -.38 -y -.665 -s .05 -m 100
  mandelmovie render -x 0.286932 -y 0.014287 -s .0005 -m 1000 -n 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.workers, "workers", "n", 1, "Number of row workers")
	flags.IntVarP(&opts.maxIterations, "max", "m", 1000, "Maximum number of iterations per point")
	flags.Float64VarP(&opts.centerX, "center-x", "x", 0.286932, "X coordinate of the image center")
	flags.Float64VarP(&opts.centerY, "center-y", "y", 0.014287, "Y coordinate of the image center")
	flags.Float64VarP(&opts.scale, "scale", "s", 0.0005, "Half width of the view in Mandelbrot coordinates")
	flags.IntVarP(&opts.width, "width", "W", 500, "Width of the image in pixels")
	flags.IntVarP(&opts.height, "height", "H", 500, "Height of the image in pixels")
	flags.StringVarP(&opts.output, "output", "o", "mandel.bmp", "Output file, the extension picks the format")
	flags.StringVar(&opts.palette, "palette", "", "Comma separated #rrggbb gradient colors")
	flags.StringVar(&opts.escapeColor, "escape-color", "", "#rrggbb color of points inside the set")
	flags.StringVar(&opts.logLevel, "log-level", "normal", "Log verbosity: minimal, normal or all")
	return cmd
}

func runRender(cmd *cobra.Command, opts renderOptions) error {
	logger := misc.NewLogger("RenderCommand", opts.logLevel, nil)

	palette, err := renderPalette(opts)
	if err != nil {
		return err
	}
	request, err := mandelbrot.NewRequest(opts.centerX, opts.centerY, opts.scale, opts.width, opts.height, opts.maxIterations, opts.workers)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "workers: n=%d mandel: x=%f y=%f scale=%f max=%d outfile=%s\n",
		opts.workers, opts.centerX, opts.centerY, opts.scale, opts.maxIterations, opts.output)

	image, err := worker.NewWorker(palette, misc.NewLogger("Worker", opts.logLevel, nil)).Render(request)
	if err != nil {
		return err
	}
	if err := image.Save(opts.output); err != nil {
		return err
	}
	logger.Debugf("Saved %s", opts.output)
	return nil
}

func renderPalette(opts renderOptions) (mandelbrot.Palette, error) {
	if strings.TrimSpace(opts.palette) == "" {
		palette := mandelbrot.DefaultPalette()
		if opts.escapeColor != "" {
			escape, err := mandelbrot.ParseHexColor(opts.escapeColor)
			if err != nil {
				return mandelbrot.Palette{}, err
			}
			palette.EscapeColor = escape
		}
		return palette, nil
	}
	return mandelbrot.ParsePalette(opts.escapeColor, strings.Split(opts.palette, ","))
}
