package run

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/sigsort/internal/config"
	"github.com/John-Robertt/sigsort/internal/domain"
)

type progressCall struct {
	done, total int
	counts      Counts
}

type recordObserver struct {
	startCalls int
	phases     []string
	files      []int
	progress   []progressCall
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) { o.startCalls++ }

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnFileDone(idx, total int, res domain.MoveOutcome, dur time.Duration) {
	o.files = append(o.files, idx)
}

func (o *recordObserver) OnProgress(done, total int, c Counts, elapsed time.Duration) {
	o.progress = append(o.progress, progressCall{done: done, total: total, counts: c})
}

func TestExecuteWithObserver_EmitsPhaseFileAndProgressEvents(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			root := t.TempDir()
			for i := 0; i < 25; i++ {
				write(t, filepath.Join(root, fmt.Sprintf("f%02d.mp3", i)), mp3Bytes)
			}

			obs := &recordObserver{}
			rr := ExecuteWithObserver(context.Background(), effFor(root, parallel), testDeps(), obs)

			if obs.startCalls != 1 {
				t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
			}
			if want := []string{"scan", "exec"}; !reflect.DeepEqual(obs.phases, want) {
				t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, want)
			}
			if len(obs.files) != 25 || obs.files[0] != 1 || obs.files[24] != 25 {
				t.Fatalf("文件事件不符合预期：%v", obs.files)
			}

			var dones []int
			for _, p := range obs.progress {
				dones = append(dones, p.done)
				if p.total != 25 {
					t.Fatalf("期望 total=25，实际 %d", p.total)
				}
			}
			if want := []int{10, 20, 25}; !reflect.DeepEqual(dones, want) {
				t.Fatalf("进度节奏不符合预期：got=%v want=%v", dones, want)
			}
			if last := obs.progress[len(obs.progress)-1].counts; last.Moved != 25 {
				t.Fatalf("最终计数不符合预期：%+v", last)
			}
			if rr.Summary.Moved != 25 {
				t.Fatalf("summary 不符合预期：%+v", rr.Summary)
			}
		})
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	for _, root := range []string{a, b} {
		write(t, filepath.Join(root, "song.mp4"), mp3Bytes)
		write(t, filepath.Join(root, "data.bin"), []byte("random"))
	}

	ra := Execute(context.Background(), effFor(a, false), testDeps())
	rb := ExecuteWithObserver(context.Background(), effFor(b, false), testDeps(), nil)

	if !reflect.DeepEqual(ra.Summary.ByCategory, rb.Summary.ByCategory) || ra.Summary.Moved != rb.Summary.Moved || ra.Summary.Unknown != rb.Summary.Unknown {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", ra.Summary, rb.Summary)
	}
}
