/*
Package binder wires instance methods to events declaratively.

A Class is an explicit handler table for an instance type: On and OnGet
declare that a method handles an event, and Attach subscribes those
methods for a new instance. Classes form hierarchies through Extend, which
mirrors struct embedding: the child names how to reach its embedded parent.

# Overriding

Attach walks from the most-derived class to the root and binds the first
declaration it finds for each method name. A subclass that redeclares a
method replaces its parent's handler for that instance; methods declared
only by an ancestor still bind.

	var (
	    baseClass = binder.Define[Base]("Base").AutoBind()
	    midClass  = binder.Extend("Mid", baseClass, func(m *Mid) *Base { return &m.Base })
	    leafClass = binder.Extend("Leaf", midClass, func(l *Leaf) *Mid { return &l.Mid }).AutoBind()
	)

# AutoBind

Only hierarchies with an AutoBind class bind anything. A class that is not
marked itself still binds when an ancestor is, because it inherits the
ancestor's construction behaviour.
*/
package binder
