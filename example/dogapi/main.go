// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/z5labs/loam"
)

type breedsResponse struct {
	Message map[string][]string `json:"message"`
	Status  string              `json:"status"`
}

type subBreedsResponse struct {
	Message []string `json:"message"`
	Status  string   `json:"status"`
}

func main() {
	// Declare the API surface once; the client executes it.
	dog := loam.NewResource("dog",
		loam.Endpoint("https://dog.ceo/api"),
		loam.Timeout(10*time.Second),
		loam.Method("ListBreeds",
			loam.Get("breeds/list/all"),
		),
		loam.Method("ListSubBreeds",
			loam.Get("breed/{name}/list"),
		),
		loam.Method("RandomImage",
			loam.Get("breed/{name}/images/random"),
		),
	)

	client := loam.New(
		loam.Use(dog),
		loam.WithRequestID(),
	)

	ctx := context.Background()

	breeds, err := loam.CallAs[breedsResponse](ctx, client, "ListBreeds")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d breeds known\n", len(breeds.Message))

	sub, err := loam.CallAs[subBreedsResponse](ctx, client, "ListSubBreeds",
		loam.Arg("name", "hound"),
	)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("hound sub-breeds: %v\n", sub.Message)

	// Sessions reuse connections across calls.
	err = client.WithSession(ctx, func(ctx context.Context, s *loam.Session) error {
		for _, name := range []string{"hound", "pug", "boxer"} {
			v, err := s.Call(ctx, "RandomImage", loam.Arg("name", name))
			if err != nil {
				return err
			}
			fmt.Printf("%s: %v\n", name, v.(map[string]any)["message"])
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	// Export the declared surface as an OpenAPI document.
	spec, err := loam.SpecOf("Dog API", "1.0.0", dog)
	if err != nil {
		log.Fatal(err)
	}
	b, err := spec.MarshalYAML()
	if err != nil {
		log.Fatal(err)
	}
	os.Stdout.Write(b)
}
