package detections

import (
	"image"
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// The NRGBA fast path reads pixel rows directly instead of going through the
// color interface; it pays off most on machines with wide vector units, where
// the compiler vectorizes the scale loop.
var useFastPath = runtime.GOARCH == "amd64" && (cpu.X86.HasAVX2 || cpu.X86.HasSSE41)

// Preprocessor converts a resized frame into a CHW float32 tensor buffer,
// scaled to [0, 1]. Buffers are pooled and handed back after the tensor copy.
type Preprocessor struct {
	width, height int
	numWorkers    int
	bufferPool    *sync.Pool
}

func NewPreprocessor(width, height int) *Preprocessor {
	return &Preprocessor{
		width:      width,
		height:     height,
		numWorkers: runtime.GOMAXPROCS(0),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]float32, width*height*3)
			},
		},
	}
}

// Process fills dst (length width*height*3, CHW order) from img. The image
// must already be resized to the preprocessor's dimensions.
func (p *Preprocessor) Process(img image.Image, dst []float32) {
	buffer := p.bufferPool.Get().([]float32)
	defer p.bufferPool.Put(buffer)

	if nrgba, ok := img.(*image.NRGBA); ok && useFastPath {
		p.processNRGBA(nrgba, buffer)
	} else {
		p.processGeneric(img, buffer)
	}
	copy(dst, buffer)
}

func (p *Preprocessor) processNRGBA(img *image.NRGBA, buffer []float32) {
	channelSize := p.width * p.height
	p.parallelRows(func(startY, endY int) {
		for y := startY; y < endY; y++ {
			row := img.Pix[y*img.Stride:]
			offset := y * p.width
			for x := 0; x < p.width; x++ {
				i := offset + x
				buffer[i] = float32(row[x*4]) / 255.0
				buffer[channelSize+i] = float32(row[x*4+1]) / 255.0
				buffer[channelSize*2+i] = float32(row[x*4+2]) / 255.0
			}
		}
	})
}

func (p *Preprocessor) processGeneric(img image.Image, buffer []float32) {
	channelSize := p.width * p.height
	p.parallelRows(func(startY, endY int) {
		for y := startY; y < endY; y++ {
			offset := y * p.width
			for x := 0; x < p.width; x++ {
				i := offset + x
				r, g, b, _ := img.At(x, y).RGBA()
				buffer[i] = float32(r>>8) / 255.0
				buffer[channelSize+i] = float32(g>>8) / 255.0
				buffer[channelSize*2+i] = float32(b>>8) / 255.0
			}
		}
	})
}

func (p *Preprocessor) parallelRows(fill func(startY, endY int)) {
	workers := p.numWorkers
	if workers > p.height {
		workers = p.height
	}
	if workers <= 1 {
		fill(0, p.height)
		return
	}

	rowsPerWorker := p.height / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if w == workers-1 {
			endY = p.height
		}
		go func(startY, endY int) {
			defer wg.Done()
			fill(startY, endY)
		}(startY, endY)
	}
	wg.Wait()
}
