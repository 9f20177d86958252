// MNIST classifier trainer: a feed-forward network with log-softmax output
// and negative-log-likelihood loss, trained with plain SGD. Expects the IDX
// files to already be on disk; with -synthetic it trains on a generated
// two-cluster dataset instead, so the loop can be exercised without any data
// files.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"time"

	"go-grad/autograd"
	"go-grad/data"
	"go-grad/nn"
	"go-grad/optimizer"
	"go-grad/utility"
)

var (
	mnistDir     = flag.String("data", "mnist_data", "directory containing the MNIST IDX files")
	epochs       = flag.Int("epochs", 3, "number of passes over the training set")
	batchSize    = flag.Int("batch", 64, "examples per batch")
	learningRate = flag.Float64("lr", 0.1, "SGD learning rate")
	seed         = flag.Uint64("seed", 42, "seed for parameter init and shuffling")
	checkpoint   = flag.String("checkpoint", "mnist_mlp.gob", "path to save trained parameters, empty to skip")
	useDashboard = flag.Bool("dashboard", false, "render a live termui dashboard instead of plain logs")
	synthetic    = flag.Bool("synthetic", false, "train on a generated two-cluster dataset instead of MNIST")
)

func buildModel(inputShape []int, numClasses int, seed uint64) (*nn.Sequential, error) {
	features := 1
	for _, dim := range inputShape {
		features *= dim
	}
	hidden1, hidden2 := 128, 64
	if *synthetic {
		hidden1, hidden2 = 16, 8
	}

	l1, err := nn.NewLinear(features, hidden1, seed)
	if err != nil {
		return nil, err
	}
	l2, err := nn.NewLinear(hidden1, hidden2, seed+1)
	if err != nil {
		return nil, err
	}
	l3, err := nn.NewLinear(hidden2, numClasses, seed+2)
	if err != nil {
		return nil, err
	}

	return nn.NewSequential(
		nn.NewFlatten(),
		l1, nn.NewRELU(),
		l2, nn.NewRELU(),
		l3, nn.NewLogSoftmax(),
	), nil
}

func loadSources() (train, test *data.InMemorySource, exampleShape []int, numClasses int, err error) {
	if *synthetic {
		exampleShape = []int{4}
		numClasses = 2
		features, labels := data.TwoClusters(512, 4, 0.4, int64(*seed))
		train, err = data.NewInMemorySource(exampleShape, features, labels, *batchSize, int64(*seed), true)
		if err != nil {
			return nil, nil, nil, 0, err
		}
		testFeatures, testLabels := data.TwoClusters(128, 4, 0.4, int64(*seed)+1)
		test, err = data.NewInMemorySource(exampleShape, testFeatures, testLabels, *batchSize, int64(*seed), false)
		return train, test, exampleShape, numClasses, err
	}

	trainPixels, exampleShape, err := data.ReadIDXImages(filepath.Join(*mnistDir, "train-images-idx3-ubyte"))
	if err != nil {
		return nil, nil, nil, 0, err
	}
	trainLabels, err := data.ReadIDXLabels(filepath.Join(*mnistDir, "train-labels-idx1-ubyte"))
	if err != nil {
		return nil, nil, nil, 0, err
	}
	testPixels, _, err := data.ReadIDXImages(filepath.Join(*mnistDir, "t10k-images-idx3-ubyte"))
	if err != nil {
		return nil, nil, nil, 0, err
	}
	testLabels, err := data.ReadIDXLabels(filepath.Join(*mnistDir, "t10k-labels-idx1-ubyte"))
	if err != nil {
		return nil, nil, nil, 0, err
	}

	train, err = data.NewInMemorySource(exampleShape, trainPixels, trainLabels, *batchSize, int64(*seed), true)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	test, err = data.NewInMemorySource(exampleShape, testPixels, testLabels, *batchSize, int64(*seed), false)
	return train, test, exampleShape, 10, err
}

// evaluate runs the model over the test source without updating anything and
// returns the fraction of correct argmax predictions.
func evaluate(model *nn.Sequential, test *data.InMemorySource) (float64, error) {
	correct, total := 0, 0
	test.Reset()
	for {
		batch, ok := test.Next()
		if !ok {
			break
		}
		logProbs, err := model.Forward(batch.Inputs)
		if err != nil {
			return 0, err
		}
		numClasses := logProbs.GetShape()[1]
		scores := logProbs.GetData()
		for i, target := range batch.Targets {
			best, bestScore := -1, math.Inf(-1)
			for c := 0; c < numClasses; c++ {
				if s := scores[i*numClasses+c]; s > bestScore {
					best, bestScore = c, s
				}
			}
			if best == target {
				correct++
			}
			total++
		}
	}
	return float64(correct) / float64(total), nil
}

func progressBar(percent float64) string {
	const width = 50
	filled := int(percent / 100 * width)
	bar := make([]byte, width)
	for i := range bar {
		switch {
		case i < filled:
			bar[i] = '='
		case i == filled:
			bar[i] = '>'
		default:
			bar[i] = ' '
		}
	}
	return string(bar)
}

func main() {
	flag.Parse()

	train, test, exampleShape, numClasses, err := loadSources()
	if err != nil {
		log.Fatalf("loading data: %v", err)
	}
	log.Printf("loaded %d training and %d test examples", train.NumExamples(), test.NumExamples())

	model, err := buildModel(exampleShape, numClasses, *seed)
	if err != nil {
		log.Fatalf("building model: %v", err)
	}
	utility.NewModelInspector(model).Summary()

	opt, err := optimizer.NewSGD(model.Parameters(), *learningRate)
	if err != nil {
		log.Fatalf("creating optimizer: %v", err)
	}

	var dash *utility.TrainingDashboard
	if *useDashboard {
		dash, err = utility.NewTrainingDashboard(*learningRate, *batchSize, *epochs)
		if err != nil {
			log.Fatalf("starting dashboard: %v", err)
		}
		defer dash.Close()
	}

	runStart := time.Now()
	numBatches := train.NumBatches()

	for epoch := 0; epoch < *epochs; epoch++ {
		epochStart := time.Now()
		runningLoss := 0.0
		train.Reset()

		for i := 0; ; i++ {
			batch, ok := train.Next()
			if !ok {
				break
			}

			// one train step: zero, forward, loss, backward, update
			opt.ZeroGrad()
			logProbs, err := model.Forward(batch.Inputs)
			if err != nil {
				log.Fatalf("epoch %d, batch %d: forward pass failed: %v", epoch, i, err)
			}
			loss, err := nn.NLLLoss(logProbs, batch.Targets)
			if err != nil {
				log.Fatalf("epoch %d, batch %d: loss failed: %v", epoch, i, err)
			}
			if err := autograd.Backward(loss); err != nil {
				log.Fatalf("epoch %d, batch %d: backward pass failed: %v", epoch, i, err)
			}
			if err := opt.Step(); err != nil {
				log.Fatalf("epoch %d, batch %d: optimizer step failed: %v", epoch, i, err)
			}

			lossValue := loss.GetData()[0]
			runningLoss += lossValue
			avgLoss := runningLoss / float64(i+1)

			if dash != nil {
				dash.AddLoss(lossValue)
				dash.UpdateProgress(epoch+1, *epochs, i+1, numBatches, avgLoss, epochStart, runStart)
			} else {
				percent := float64(i+1) / float64(numBatches) * 100
				fmt.Printf("\rEpoch %d/%d [%-50s] %3.0f%% - Avg Loss: %.4f",
					epoch+1, *epochs, progressBar(percent), percent, avgLoss)
			}
		}

		accuracy, err := evaluate(model, test)
		if err != nil {
			log.Fatalf("epoch %d: evaluation failed: %v", epoch, err)
		}
		if dash != nil {
			dash.AddAccuracy(accuracy * 100)
			dash.Log(fmt.Sprintf("epoch %d done in %v, test accuracy %.2f%%",
				epoch+1, time.Since(epochStart).Round(time.Second), accuracy*100))
		} else {
			fmt.Println()
			log.Printf("epoch %d done in %v, test accuracy %.2f%%",
				epoch+1, time.Since(epochStart).Round(time.Second), accuracy*100)
		}
	}

	if *checkpoint != "" {
		if err := model.Save(*checkpoint); err != nil {
			log.Fatalf("saving checkpoint: %v", err)
		}
		if dash == nil {
			log.Printf("saved parameters to %s", *checkpoint)
		}
	}

	if dash != nil {
		dash.Log("training complete - press q to quit")
		dash.Wait()
	}
}
