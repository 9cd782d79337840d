package memgraph

import (
	"time"

	"github.com/bryanchriswhite/camcorder/internal/pipeline"
)

const (
	defaultFPS         = 30
	audioChunk         = 20 * time.Millisecond
	fallbackSampleSize = 4096
)

// startGenerators runs one goroutine per live source while the graph plays.
// Called with stateMu held.
func (g *Graph) startGenerators() {
	g.mu.RLock()
	var sources []*Node
	for _, n := range g.order {
		if liveSources[n.factory] && g.in[n.name] == 0 {
			sources = append(sources, n)
		}
	}
	g.mu.RUnlock()
	if len(sources) == 0 {
		return
	}

	stop := make(chan struct{})
	g.genStop = stop
	for _, src := range sources {
		caps := g.downstreamCaps(src)
		interval := g.backend.opts.FrameInterval
		if interval <= 0 {
			interval = frameInterval(caps)
		}
		g.genWG.Add(1)
		go g.generate(src, caps, interval, stop)
	}
}

// stopGenerators stops every source goroutine. Called with stateMu held.
func (g *Graph) stopGenerators() {
	if g.genStop == nil {
		return
	}
	close(g.genStop)
	g.genStop = nil
	g.genWG.Wait()
}

func (g *Graph) generate(src *Node, caps pipeline.Caps, interval time.Duration, stop <-chan struct{}) {
	defer g.genWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		// caps may have been renegotiated while the graph was quiesced
		if n == 0 || n%10 == 0 {
			caps = g.downstreamCaps(src)
		}
		s := pipeline.Sample{
			Data:     synthesize(caps, n, interval),
			PTS:      time.Duration(n) * interval,
			Duration: interval,
			Caps:     caps,
		}
		for _, d := range g.outputs(src.name) {
			g.receive(d, s)
		}
	}
}

// downstreamCaps finds the first caps set downstream of n
func (g *Graph) downstreamCaps(n *Node) pipeline.Caps {
	seen := map[*Node]bool{}
	queue := g.outputs(n.name)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if c, ok := cur.Prop(pipeline.PropCaps).(pipeline.Caps); ok && !c.IsZero() {
			return c
		}
		queue = append(queue, g.outputs(cur.name)...)
	}
	return pipeline.Caps{}
}

func frameInterval(c pipeline.Caps) time.Duration {
	if c.Media == pipeline.MediaRawAudio {
		return audioChunk
	}
	fps := c.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	return time.Second / time.Duration(fps)
}

// synthesize produces a moving gradient for video and a ramp for audio
func synthesize(c pipeline.Caps, n int, interval time.Duration) []byte {
	switch c.Media {
	case pipeline.MediaRawVideo:
		size := c.FrameSize()
		if size == 0 {
			return make([]byte, fallbackSampleSize)
		}
		data := make([]byte, size)
		if c.Format == "I420" {
			ySize := c.Width * c.Height
			for y := 0; y < c.Height; y++ {
				row := data[y*c.Width : (y+1)*c.Width]
				for x := range row {
					row[x] = byte(x + y + n*4)
				}
			}
			for i := ySize; i < size; i++ {
				data[i] = 128
			}
			return data
		}
		for i := range data {
			data[i] = byte(i + n)
		}
		return data
	case pipeline.MediaRawAudio:
		rate, channels := c.Rate, c.Channels
		if rate <= 0 || channels <= 0 {
			return make([]byte, fallbackSampleSize)
		}
		bytesPerSample := 2
		if c.Format == "F32LE" {
			bytesPerSample = 4
		}
		frames := int(int64(rate) * int64(interval) / int64(time.Second))
		data := make([]byte, frames*channels*bytesPerSample)
		for i := range data {
			data[i] = byte(i * 3)
		}
		return data
	default:
		return make([]byte, fallbackSampleSize)
	}
}
