// API walkthrough: build tensors, compose a graph, run the backward engine,
// and take one optimizer step. Mirrors a full train step end to end on a toy
// problem.
package main

import (
	"errors"
	"fmt"
	"log"

	"go-grad/autograd"
	"go-grad/nn"
	"go-grad/optimizer"
	"go-grad/tensor"
	"go-grad/utility"
)

func main() {
	fmt.Println("--> tensor ops")

	a, err := tensor.NewTensor([]int{2, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		log.Fatalf("creating a: %v", err)
	}
	b, err := tensor.NewTensor([]int{2, 2}, []float64{5, 6, 7, 8})
	if err != nil {
		log.Fatalf("creating b: %v", err)
	}

	sum, _ := tensor.Add(a, b)
	fmt.Print("a + b: ")
	tensor.PrintTensor(sum)

	prod, _ := tensor.Mul(a, b)
	fmt.Print("a * b (element-wise): ")
	tensor.PrintTensor(prod)

	matmul, _ := tensor.MatMul(a, b)
	fmt.Print("a @ b: ")
	tensor.PrintTensor(matmul)

	// shape mismatches surface as typed errors naming the op
	vec, _ := tensor.NewTensor([]int{3}, []float64{1, 2, 3})
	if _, err := tensor.Add(a, vec); err != nil {
		var shapeErr *tensor.ShapeError
		if errors.As(err, &shapeErr) {
			fmt.Printf("shape error as expected: %v\n", shapeErr)
		}
	}

	fmt.Println("\n--> a full train step")

	// two-layer classifier: 2 features -> 4 hidden -> 3 classes
	l1, err := nn.NewLinear(2, 4, 7)
	if err != nil {
		log.Fatalf("creating layer 1: %v", err)
	}
	l2, err := nn.NewLinear(4, 3, 8)
	if err != nil {
		log.Fatalf("creating layer 2: %v", err)
	}
	model := nn.NewSequential(l1, nn.NewRELU(), l2)
	utility.NewModelInspector(model).Summary()

	x, _ := tensor.NewTensor([]int{2, 2}, []float64{0.5, -0.2, -1.0, 0.8})
	targets := []int{1, 2}

	logits, err := model.Forward(x)
	if err != nil {
		log.Fatalf("forward: %v", err)
	}
	fmt.Print("logits: ")
	tensor.PrintTensor(logits)

	// the fused and decomposed loss paths agree
	fused, err := nn.CrossEntropyLoss(logits, targets)
	if err != nil {
		log.Fatalf("fused loss: %v", err)
	}
	logProbs, _ := tensor.LogSoftmax(logits)
	decomposed, _ := nn.NLLLoss(logProbs, targets)
	fmt.Printf("fused loss %.6f, decomposed loss %.6f\n", fused.GetData()[0], decomposed.GetData()[0])

	if err := autograd.Backward(fused); err != nil {
		log.Fatalf("backward: %v", err)
	}
	fmt.Println("gradients after backward:")
	for _, p := range model.Parameters() {
		tensor.PrintTensor(p)
	}

	// the graph is released after a non-retained backward pass
	if err := autograd.Backward(fused); err != nil {
		var lifecycleErr *autograd.GraphLifecycleError
		if errors.As(err, &lifecycleErr) {
			fmt.Printf("second backward rejected as expected: %v\n", lifecycleErr)
		}
	}

	opt, err := optimizer.NewSGD(model.Parameters(), 0.1)
	if err != nil {
		log.Fatalf("creating optimizer: %v", err)
	}
	if err := opt.Step(); err != nil {
		log.Fatalf("step: %v", err)
	}
	opt.ZeroGrad()

	logitsAfter, err := model.Forward(x)
	if err != nil {
		log.Fatalf("forward after step: %v", err)
	}
	lossAfter, _ := nn.CrossEntropyLoss(logitsAfter, targets)
	fmt.Printf("loss before step %.6f, after step %.6f\n", fused.GetData()[0], lossAfter.GetData()[0])
}
