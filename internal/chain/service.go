package chain

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
)

// Ref identifies one document in the chain.
type Ref struct {
	Kind  enums.DocKind `json:"kind"`
	DocNo string        `json:"doc_no"`
}

// Node is one rendered tree node. Siblings of one kind under a parent stay
// grouped in a Branch so presentation keeps branch semantics.
type Node struct {
	Kind     enums.DocKind   `json:"kind"`
	DocNo    string          `json:"doc_no"`
	Status   enums.DocStatus `json:"status"`
	Supplier *string         `json:"supplier,omitempty"`
	InPath   bool            `json:"in_path"`
	Branches []Branch        `json:"branches,omitempty"`
}

// Branch groups same-kind siblings under one parent.
type Branch struct {
	Kind  enums.DocKind `json:"kind"`
	Nodes []Node        `json:"nodes"`
}

// Overview is the full chain view for one document: its ancestor path, the
// tree from the chain root, and the root→document path refs.
type Overview struct {
	Ancestors []Ref `json:"ancestors"`
	Tree      *Node `json:"tree"`
	Path      []Ref `json:"path"`
}

// Service builds ancestor paths and descendant trees over source references.
type Service interface {
	WithTx(tx *gorm.DB) Service

	// Ancestors walks the source pointers backward, root first. A cycle
	// halts the walk (best effort); a missing ancestor is an error.
	Ancestors(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error)
	// AncestorsStrict reports CYCLIC_CHAIN instead of halting; audit mode.
	AncestorsStrict(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error)
	DescendantTree(ctx context.Context, kind enums.DocKind, docNo string) (*Node, error)
	PathHighlight(ctx context.Context, root Ref, target Ref) (map[Ref]bool, error)
	FindRoot(ctx context.Context, kind enums.DocKind, docNo string) (Ref, error)
	Overview(ctx context.Context, kind enums.DocKind, docNo string) (*Overview, error)
}

type service struct {
	repo Repository
}

// NewService wires the chain service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("chain repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Ancestors(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error) {
	return s.ancestors(ctx, kind, docNo, false)
}

func (s *service) AncestorsStrict(ctx context.Context, kind enums.DocKind, docNo string) ([]models.Document, error) {
	return s.ancestors(ctx, kind, docNo, true)
}

func (s *service) ancestors(ctx context.Context, kind enums.DocKind, docNo string, strict bool) ([]models.Document, error) {
	start, err := s.repo.GetDocument(ctx, kind, docNo)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, docNo))
	}

	visited := map[Ref]bool{{Kind: start.Kind, DocNo: start.DocNo}: true}
	chain := []models.Document{*start}
	current := start

	for current.HasSource() {
		ref := Ref{Kind: *current.SourceKind, DocNo: *current.SourceNo}
		if visited[ref] {
			if strict {
				return nil, pkgerrors.New(pkgerrors.CodeCyclicChain,
					fmt.Sprintf("source chain of %s %s revisits %s %s", kind, docNo, ref.Kind, ref.DocNo)).
					WithDetails(map[string]any{"revisited_kind": ref.Kind, "revisited_no": ref.DocNo})
			}
			break
		}
		visited[ref] = true

		parent, err := s.repo.GetDocument(ctx, ref.Kind, ref.DocNo)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, pkgerrors.New(pkgerrors.CodeBrokenChain,
				fmt.Sprintf("%s %s references missing %s %s", current.Kind, current.DocNo, ref.Kind, ref.DocNo)).
				WithDetails(map[string]any{
					"referencing_kind": current.Kind,
					"referencing_no":   current.DocNo,
					"missing_kind":     ref.Kind,
					"missing_no":       ref.DocNo,
				})
		}
		chain = append(chain, *parent)
		current = parent
	}

	// Root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *service) DescendantTree(ctx context.Context, kind enums.DocKind, docNo string) (*Node, error) {
	root, err := s.repo.GetDocument(ctx, kind, docNo)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, docNo))
	}

	visited := map[Ref]bool{}
	node, err := s.buildSubtree(ctx, root, visited, nil)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// buildSubtree is a pure recursive build: each call returns its own subtree
// value, with only the visited set threaded through.
func (s *service) buildSubtree(ctx context.Context, doc *models.Document, visited map[Ref]bool, inPath map[Ref]bool) (Node, error) {
	ref := Ref{Kind: doc.Kind, DocNo: doc.DocNo}
	visited[ref] = true

	node := Node{
		Kind:     doc.Kind,
		DocNo:    doc.DocNo,
		Status:   doc.Status,
		Supplier: doc.Supplier,
		InPath:   inPath[ref],
	}

	children, err := s.repo.ListChildren(ctx, doc.Kind, doc.DocNo)
	if err != nil {
		return Node{}, err
	}

	grouped := map[enums.DocKind][]Node{}
	for i := range children {
		child := children[i]
		childRef := Ref{Kind: child.Kind, DocNo: child.DocNo}
		if visited[childRef] {
			continue
		}
		subtree, err := s.buildSubtree(ctx, &child, visited, inPath)
		if err != nil {
			return Node{}, err
		}
		grouped[child.Kind] = append(grouped[child.Kind], subtree)
	}

	for _, k := range enums.AllDocKinds() {
		if nodes, ok := grouped[k]; ok {
			node.Branches = append(node.Branches, Branch{Kind: k, Nodes: nodes})
		}
	}
	return node, nil
}

func (s *service) PathHighlight(ctx context.Context, root Ref, target Ref) (map[Ref]bool, error) {
	ancestors, err := s.Ancestors(ctx, target.Kind, target.DocNo)
	if err != nil {
		return nil, err
	}

	path := map[Ref]bool{}
	seenRoot := false
	for _, doc := range ancestors {
		ref := Ref{Kind: doc.Kind, DocNo: doc.DocNo}
		if ref == root {
			seenRoot = true
		}
		if seenRoot {
			path[ref] = true
		}
	}
	if !seenRoot {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%s %s does not descend from %s %s", target.Kind, target.DocNo, root.Kind, root.DocNo))
	}
	return path, nil
}

func (s *service) FindRoot(ctx context.Context, kind enums.DocKind, docNo string) (Ref, error) {
	ancestors, err := s.Ancestors(ctx, kind, docNo)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Kind: ancestors[0].Kind, DocNo: ancestors[0].DocNo}, nil
}

// Overview renders the whole chain around one document: ancestors root-first,
// the tree from the root, and the root→document path marked on the nodes.
func (s *service) Overview(ctx context.Context, kind enums.DocKind, docNo string) (*Overview, error) {
	ancestors, err := s.Ancestors(ctx, kind, docNo)
	if err != nil {
		return nil, err
	}

	path := make([]Ref, 0, len(ancestors))
	inPath := map[Ref]bool{}
	for _, doc := range ancestors {
		ref := Ref{Kind: doc.Kind, DocNo: doc.DocNo}
		path = append(path, ref)
		inPath[ref] = true
	}

	root := ancestors[0]
	visited := map[Ref]bool{}
	tree, err := s.buildSubtree(ctx, &root, visited, inPath)
	if err != nil {
		return nil, err
	}

	ancestorRefs := path[:len(path)-1]
	return &Overview{Ancestors: ancestorRefs, Tree: &tree, Path: path}, nil
}
