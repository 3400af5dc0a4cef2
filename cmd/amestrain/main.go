// Command amestrain は Ames 住宅価格の勾配ブースティング回帰モデルを学習します。
//
//	amestrain train --data-folder ./mnt --n-estimators 500 --max-depth 4 \
//	    --min-samples-split 2 --learning-rate 0.01
//	amestrain rebuild-pipeline --csv ./labels.csv --label y
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
